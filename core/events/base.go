package events

// Name is the tag an event is recorded under.
type Name string

// Payload carries event specific key-value data.
type Payload map[string]any

type Event interface {
	Name() Name
	Payload() Payload
}

type Base struct {
	name    Name
	payload Payload
}

func NewBase(name Name, payload Payload) Base {
	if payload == nil {
		payload = Payload{}
	}
	return Base{name: name, payload: payload}
}

func (b Base) Name() Name {
	return b.name
}

func (b Base) Payload() Payload {
	return b.payload
}

var known = map[Name]struct{}{
	NameLessonPlay:     {},
	NameLessonPause:    {},
	NameLessonComplete: {},
	NameAudioGenFail:   {},
	NameIngestStart:    {},
	NameIngestSuccess:  {},
	NameIngestFail:     {},
	NameQuizStart:      {},
	NameQuizComplete:   {},
	NamePaywallTrigger: {},
	NameConversion:     {},
	NamePaywallDismiss: {},
}

// IsKnown reports whether name belongs to the closed vocabulary.
func IsKnown(name Name) bool {
	_, ok := known[name]
	return ok
}
