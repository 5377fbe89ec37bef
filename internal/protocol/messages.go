package protocol

import (
	"net/http"

	"github.com/saker-ai/chiku/internal/command"
	"github.com/saker-ai/chiku/internal/media"
)

// Frame types accepted on the websocket channel. HTTP bodies carry no type.
const (
	TypeCommand      = "command"
	TypeListCommands = "list-commands"
	TypeHeartbeat    = "heartbeat"
)

// CommandRequest is the body of POST / and of each websocket text frame.
// It keeps the field names the web client already sends.
type CommandRequest struct {
	Type      string `json:"type,omitempty"`
	Command   string `json:"command"`
	Prompt    string `json:"prompt,omitempty"`
	Text      string `json:"text,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// MediaRequest picks the argument field the command reads.
func (r CommandRequest) MediaRequest() media.Request {
	req := media.Request{Command: r.Command}
	cmd, ok := command.Lookup(r.Command)
	if !ok {
		return req
	}
	switch cmd.ArgumentName {
	case "prompt":
		req.Argument = r.Prompt
	case "text":
		req.Argument = r.Text
	}
	return req
}

// NewCommandRequest is the inverse of MediaRequest.
func NewCommandRequest(req media.Request) CommandRequest {
	out := CommandRequest{Command: req.Command}
	cmd, ok := command.Lookup(req.Command)
	if !ok {
		return out
	}
	out.Command = cmd.ID
	switch cmd.ArgumentName {
	case "prompt":
		out.Prompt = req.Argument
	case "text":
		out.Text = req.Argument
	}
	return out
}

// CommandResponse is the union of every response body. Exactly one of
// Images, AudioDataURL or Error is set.
type CommandResponse struct {
	Images       []string `json:"images,omitempty"`
	Type         string   `json:"type,omitempty"`
	AudioDataURL string   `json:"audioDataUrl,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// NewCommandResponse renders a result as the status and body sent to clients.
func NewCommandResponse(result media.Result) (int, CommandResponse) {
	payload, ok := result.Payload()
	if !ok {
		return result.HTTPStatus(), CommandResponse{Error: result.Message()}
	}
	if payload.Kind == media.KindAudio {
		return http.StatusOK, CommandResponse{AudioDataURL: payload.DataURI}
	}
	resp := CommandResponse{Images: []string{payload.DataURI}}
	if payload.SubType != media.SubTypeGenerated {
		resp.Type = payload.SubType
	}
	return http.StatusOK, resp
}

// Result converts a response body and status back into a media result.
func (r CommandResponse) Result(kind media.Kind, subType string, status int) media.Result {
	if status < 200 || status > 299 || r.Error != "" {
		msg := r.Error
		if msg == "" {
			msg = http.StatusText(status)
		}
		return media.Failure(media.ClassFromStatus(status), msg)
	}

	uri := r.AudioDataURL
	if len(r.Images) > 0 {
		uri = r.Images[0]
		kind = media.KindImage
		if r.Type != "" {
			subType = r.Type
		}
	} else if uri != "" {
		kind = media.KindAudio
	}
	mime, data, err := media.DecodeDataURI(uri)
	if err != nil {
		return media.UpstreamError("Invalid media in response")
	}
	return media.Success(media.NewPayload(kind, subType, mime, data))
}

// CommandResult is a websocket reply: the response body plus the echoed id.
type CommandResult struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Status    int    `json:"status"`
	CommandResponse
}

// CommandInfo describes one table entry for list-commands replies.
type CommandInfo struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Instant     bool   `json:"instant"`
}

// CommandList is the reply to a list-commands frame.
type CommandList struct {
	Type     string        `json:"type"`
	Commands []CommandInfo `json:"commands"`
}

// NewCommandList renders the command table.
func NewCommandList() CommandList {
	table := command.Table()
	infos := make([]CommandInfo, 0, len(table))
	for _, cmd := range table {
		infos = append(infos, CommandInfo{
			ID:          cmd.ID,
			Label:       cmd.Label,
			Description: cmd.Description,
			Instant:     cmd.Mode == command.DispatchInstant,
		})
	}
	return CommandList{Type: TypeListCommands, Commands: infos}
}
