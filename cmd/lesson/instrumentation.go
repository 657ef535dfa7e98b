package main

import "go.opentelemetry.io/contrib/bridges/otelslog"

const scopeName = "github.com/koscakluka/cognitive-os/cmd/lesson"

var logger = otelslog.NewLogger(scopeName)
