package biliapi

import "encoding/json"

// envelope is the fixed JSON wrapper every API response uses.
// code != 0 is an application-level error regardless of HTTP status.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Folder is one favorites folder (created or collected).
type Folder struct {
	ID         int64  `json:"id"`
	FID        int64  `json:"fid"`
	MID        int64  `json:"mid"`
	Title      string `json:"title"`
	MediaCount int    `json:"media_count"`
}

// Media is one member of a favorites folder.
type Media struct {
	ID    int64  `json:"id"`
	BVID  string `json:"bvid"`
	Title string `json:"title"`
}

// Owner is the uploader of a video.
type Owner struct {
	MID  int64  `json:"mid"`
	Name string `json:"name"`
}

// Page is one part of a multi-part video.
type Page struct {
	CID  int64  `json:"cid"`
	Page int    `json:"page"`
	Part string `json:"part"`
}

// VideoInfo is the metadata returned by the view endpoint.
type VideoInfo struct {
	BVID  string `json:"bvid"`
	AID   int64  `json:"aid"`
	Title string `json:"title"`
	Owner Owner  `json:"owner"`
	Pages []Page `json:"pages"`
}

// playURLData is the payload of the playurl endpoint. AcceptQuality
// and AcceptDescription are parallel arrays describing the available
// quality codes for the requested part.
type playURLData struct {
	AcceptQuality     []int     `json:"accept_quality"`
	AcceptDescription []string  `json:"accept_description"`
	Dash              *dashInfo `json:"dash"`
}

type dashInfo struct {
	Video []DashStream `json:"video"`
	Audio []DashStream `json:"audio"`
}

// DashStream is one track in the DASH manifest. The API has shipped
// both baseUrl and base_url spellings, so both are decoded.
type DashStream struct {
	ID        int    `json:"id"`
	Bandwidth int    `json:"bandwidth"`
	BaseURL   string `json:"baseUrl"`
	BaseURLv2 string `json:"base_url"`
}

// URL returns the direct download URL regardless of key spelling.
func (s DashStream) URL() string {
	if s.BaseURL != "" {
		return s.BaseURL
	}
	return s.BaseURLv2
}
