package chat

// DerivedMessage augments a Message with presentation fields recomputed on
// every derivation pass. The derived fields are rendering hints only and
// must never be persisted back into the canonical list.
type DerivedMessage struct {
	Message
	NextMessageInGroup bool `json:"nextMessageInGroup"`
	Offset             int  `json:"offset"`
	ShowName           bool `json:"showName"`
	ShowStatus         bool `json:"showStatus"`
}

// Strip drops the derived presentation fields so an edited or resent
// message re-enters the canonical pipeline as a plain Message.
func (d DerivedMessage) Strip() Message { return d.Message }

// PreviewImage is one gallery entry collected from an image message.
type PreviewImage struct {
	ID  string `json:"id"`
	URI string `json:"uri"`
}
