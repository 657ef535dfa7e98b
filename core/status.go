package playback

type Status string

const (
	StatusIdle             Status = "idle"
	StatusGeneratingScript Status = "generating_script"
	StatusGeneratingAudio  Status = "generating_audio"
	StatusReady            Status = "ready"
	StatusPlaying          Status = "playing"
	StatusPaused           Status = "paused"
	StatusError            Status = "error"
)

var transitions = map[Status][]Status{
	StatusIdle:             {StatusGeneratingScript, StatusError},
	StatusGeneratingScript: {StatusGeneratingAudio, StatusError},
	StatusGeneratingAudio:  {StatusReady, StatusError},
	StatusReady:            {StatusPlaying, StatusGeneratingScript, StatusError},
	StatusPlaying:          {StatusPaused, StatusGeneratingScript, StatusError},
	StatusPaused:           {StatusPlaying, StatusGeneratingScript, StatusError},
	StatusError:            {StatusGeneratingScript, StatusError},
}

func (s Status) String() string { return string(s) }

// IsGenerating reports whether a generation cycle owns the session.
func (s Status) IsGenerating() bool {
	return s == StatusGeneratingScript || s == StatusGeneratingAudio
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
