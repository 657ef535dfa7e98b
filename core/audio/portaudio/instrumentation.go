package portaudio

import "go.opentelemetry.io/otel"

const scopeName = "github.com/koscakluka/cognitive-os/core/audio/portaudio"

var tracer = otel.Tracer(scopeName)
