package events

const (
	// NameLessonPlay identifies playback start or resume.
	NameLessonPlay Name = "lesson_play"
	// NameLessonPause identifies a user pause.
	NameLessonPause Name = "lesson_pause"
	// NameLessonComplete identifies a resource played to its end.
	NameLessonComplete Name = "lesson_complete"
	// NameAudioGenFail identifies a failed generation cycle.
	NameAudioGenFail Name = "audio_gen_fail"
)

type LessonPlay struct{ Base }

func NewLessonPlay(moduleID string) LessonPlay {
	return LessonPlay{Base: NewBase(NameLessonPlay, Payload{"module_id": moduleID})}
}

type LessonPause struct{ Base }

// NewLessonPause records the position, in seconds, the lesson was paused at.
func NewLessonPause(moduleID string, position float64) LessonPause {
	return LessonPause{Base: NewBase(NameLessonPause, Payload{"module_id": moduleID, "time": position})}
}

type LessonComplete struct{ Base }

func NewLessonComplete(moduleID string) LessonComplete {
	return LessonComplete{Base: NewBase(NameLessonComplete, Payload{"module_id": moduleID})}
}

type AudioGenFail struct{ Base }

// NewAudioGenFail carries the raw error message for diagnostics. moduleID is
// omitted when empty.
func NewAudioGenFail(moduleID string, message string) AudioGenFail {
	payload := Payload{"error": message}
	if moduleID != "" {
		payload["module_id"] = moduleID
	}
	return AudioGenFail{Base: NewBase(NameAudioGenFail, payload)}
}
