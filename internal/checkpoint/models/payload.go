package models

import (
	"encoding/json"
	"strings"
	"time"
)

// PayloadKind tags how a presented code was interpreted.
type PayloadKind int

const (
	// PayloadRaw is a bare code string.
	PayloadRaw PayloadKind = iota
	// PayloadStructured is the JSON document embedded in an issued QR image.
	PayloadStructured
)

func (k PayloadKind) String() string {
	if k == PayloadStructured {
		return "structured"
	}
	return "raw"
}

// Payload is the parsed form of whatever the scanner sent.
type Payload struct {
	Kind       PayloadKind
	Code       string
	DriverName string
}

// QRPayload is the document encoded into each issued QR image.
type QRPayload struct {
	DriverName  string    `json:"driver_name"`
	Code        string    `json:"code"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Encode renders the payload as compact JSON.
func (p QRPayload) Encode() ([]byte, error) {
	return json.Marshal(p)
}

type wirePayload struct {
	Code       *string `json:"code"`
	DriverName *string `json:"driver_name"`
}

// ParsePayload interprets raw in a single attempt. A JSON object carrying
// non-empty string "code" and "driver_name" fields is structured; anything
// else is treated as a raw code with an unknown driver.
func ParsePayload(raw string) Payload {
	var wire wirePayload
	if err := json.Unmarshal([]byte(raw), &wire); err == nil && wire.Code != nil && wire.DriverName != nil {
		code := strings.TrimSpace(*wire.Code)
		name := strings.TrimSpace(*wire.DriverName)
		if code != "" && name != "" {
			return Payload{Kind: PayloadStructured, Code: code, DriverName: name}
		}
	}
	return Payload{Kind: PayloadRaw, Code: strings.TrimSpace(raw), DriverName: UnknownDriver}
}
