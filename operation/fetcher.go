package operation

import (
	"context"
	"encoding/xml"
	"strings"

	"github.com/crmarques/mobilectl/channel"
	"github.com/crmarques/mobilectl/faults"
)

// ChannelFetcher reads GET /<subscription>/operations/<id>.
type ChannelFetcher struct {
	Session *channel.Session
}

type operationBody struct {
	XMLName xml.Name `xml:"Operation" json:"-"`
	Status  string   `xml:"Status" json:"Status"`
	Error   *struct {
		Code    string `xml:"Code" json:"Code"`
		Message string `xml:"Message" json:"Message"`
	} `xml:"Error" json:"Error"`
}

func (f ChannelFetcher) FetchState(ctx context.Context, id string) (State, error) {
	response, err := f.Session.NewChannel().
		Path("operations").
		Path(id).
		Header("Accept", channel.MediaTypeJSON).
		Get(ctx)
	if err != nil {
		return State{}, err
	}

	var body operationBody
	trimmed := strings.TrimSpace(response.Text())
	if strings.HasPrefix(trimmed, "<") {
		err = response.DecodeXML(&body)
	} else {
		err = response.Decode(&body)
	}
	if err != nil {
		return State{}, err
	}
	if strings.TrimSpace(body.Status) == "" {
		return State{}, faults.NewTypedError(faults.ParseError, "operation status body has no Status field", nil)
	}

	state := State{Status: Status(strings.TrimSpace(body.Status))}
	if body.Error != nil {
		state.ErrorCode = body.Error.Code
		state.ErrorMessage = body.Error.Message
	}
	return state, nil
}
