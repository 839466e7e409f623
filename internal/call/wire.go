package call

import "github.com/bhandras/delight/rtc/internal/locus"

const (
	deviceTypeDesktop = "DESKTOP"
	mediaTypeSDP      = "SDP"
)

type deviceRef struct {
	URL        string `json:"url"`
	DeviceType string `json:"deviceType"`
}

type localMedia struct {
	Type     string `json:"type"`
	LocalSDP string `json:"localSdp"`
}

type invitee struct {
	Address string `json:"address"`
}

// dialRequest is the body of POST loci/call.
type dialRequest struct {
	Invitee     invitee      `json:"invitee"`
	Device      deviceRef    `json:"device"`
	LocalMedias []localMedia `json:"localMedias"`
}

// joinRequest is the body of POST {callUrl}/participant and
// PUT {selfUrl}/media.
type joinRequest struct {
	Device      deviceRef    `json:"device"`
	LocalMedias []localMedia `json:"localMedias"`
}

// deviceRequest is the body of leave and decline.
type deviceRequest struct {
	DeviceURL string `json:"deviceUrl"`
}

type admitRequest struct {
	Admit admitList `json:"admit"`
}

type admitList struct {
	ParticipantIDs []string `json:"participantIds"`
}

// locusResponse wraps the snapshot returned by call control endpoints.
type locusResponse struct {
	Locus            *locus.Model            `json:"locus"`
	MediaConnections []locus.MediaConnection `json:"mediaConnections,omitempty"`
}

func (r locusResponse) model() *locus.Model {
	if r.Locus == nil {
		return nil
	}
	m := r.Locus
	if len(m.MediaConnections) == 0 && len(r.MediaConnections) > 0 {
		m.MediaConnections = r.MediaConnections
	}
	return m
}

func newJoinRequest(deviceURL, sdp string) joinRequest {
	return joinRequest{
		Device:      deviceRef{URL: deviceURL, DeviceType: deviceTypeDesktop},
		LocalMedias: []localMedia{{Type: mediaTypeSDP, LocalSDP: sdp}},
	}
}
