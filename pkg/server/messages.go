package server

import (
	"encoding/json"

	"github.com/vango-dev/tumorscope/pkg/upload"
)

// Client event types.
const (
	EventDragOver     = "dragover"
	EventDragLeave    = "dragleave"
	EventDrop         = "drop"
	EventPick         = "pick"
	EventUploaded     = "uploaded"
	EventUploadFailed = "upload_failed"
	EventSubmit       = "submit"
	EventDismiss      = "dismiss"
	EventPing         = "ping"
)

// Server message types. Controller commands ("upload", "scroll") are sent
// as they are.
const (
	MessageHello = "hello"
	MessagePatch = "patch"
	MessageError = "error"
	MessagePong  = "pong"
)

// Event is a client frame.
type Event struct {
	Type  string     `json:"t"`
	Files []FileMeta `json:"files,omitempty"`
	Op    uint64     `json:"op,omitempty"`

	// ID is the temp upload ID for "uploaded" and the toast ID for
	// "dismiss".
	ID string `json:"id,omitempty"`
}

// FileMeta is the browser's File metadata.
type FileMeta struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`

	// Ref is the client's sequence number for the File object.
	Ref uint64 `json:"ref,omitempty"`
}

func (f FileMeta) info() upload.FileInfo {
	return upload.FileInfo{Name: f.Name, Type: f.Type, Size: f.Size, Ref: f.Ref}
}

// Message is a server frame.
type Message struct {
	Type    string `json:"t"`
	ID      string `json:"id,omitempty"`
	HTML    string `json:"html,omitempty"`
	Message string `json:"message,omitempty"`
}

// DecodeEvent parses a client frame.
func DecodeEvent(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
