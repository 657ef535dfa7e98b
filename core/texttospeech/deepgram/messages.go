package deepgram

type websocketMessage struct {
	Type string `json:"type"`
}

type speakMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// serverMessage covers every JSON frame the speak endpoint sends back.
type serverMessage struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	ErrCode     string `json:"err_code,omitempty"`
	ErrMsg      string `json:"err_msg,omitempty"`
}

const (
	msgFlushed  = "Flushed"
	msgCleared  = "Cleared"
	msgMetadata = "Metadata"
	msgWarning  = "Warning"
	msgError    = "Error"
)

var (
	sendTextMsg = func(text string) speakMessage { return speakMessage{Type: "Speak", Text: text} }
	flushMsg    = websocketMessage{Type: "Flush"}
	closeMsg    = websocketMessage{Type: "Close"}
)
