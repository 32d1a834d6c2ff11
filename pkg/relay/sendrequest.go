package relay

// SendRequest is the wire form of one dispatch request. The HTTP API decodes
// it from the request body and the Pub/Sub pipeline from the message payload.
type SendRequest struct {
	UserID string         `json:"userId,omitempty"`
	Token  string         `json:"token,omitempty"`
	Title  string         `json:"title"`
	Body   string         `json:"body"`
	Image  string         `json:"image,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// Validate checks the required fields. The engine re-validates defensively,
// but callers use this to reject bad requests before resolving anything.
func (r *SendRequest) Validate() error {
	if r.Title == "" {
		return &ValidationError{Field: "title", Reason: "required"}
	}
	if r.Body == "" {
		return &ValidationError{Field: "body", Reason: "required"}
	}
	if r.UserID == "" && r.Token == "" {
		return &ValidationError{Field: "userId", Reason: "either userId or token is required"}
	}
	return nil
}

// Target maps the request onto a target selector. A non-empty Token wins
// over UserID; the literal BroadcastUserID selects every user.
func (r *SendRequest) Target() Target {
	switch {
	case r.Token != "":
		return DirectTokenTarget(r.Token)
	case r.UserID == BroadcastUserID:
		return AllUsersTarget()
	default:
		return UserTarget(r.UserID)
	}
}

// Payload extracts the notification content. Priority and sound are left
// empty so the engine applies its configured defaults.
func (r *SendRequest) Payload() Payload {
	return Payload{
		Title: r.Title,
		Body:  r.Body,
		Image: r.Image,
		Data:  r.Data,
	}
}
