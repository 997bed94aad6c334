package telephony

import (
	"encoding/xml"
	"fmt"
)

// TwiML verb elements. Only the verbs the voice flow uses are modeled.

// Say speaks text to the caller
type Say struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

// Gather collects caller speech and posts it to Action
type Gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr"`
	Action        string   `xml:"action,attr"`
	Method        string   `xml:"method,attr"`
	SpeechTimeout string   `xml:"speechTimeout,attr,omitempty"`
	Say           *Say     `xml:"Say,omitempty"`
}

// Record records the call leg and posts the recording to Action
type Record struct {
	XMLName                       xml.Name `xml:"Record"`
	RecordingStatusCallback       string   `xml:"recordingStatusCallback,attr,omitempty"`
	RecordingStatusCallbackMethod string   `xml:"recordingStatusCallbackMethod,attr,omitempty"`
}

// Redirect re-enters the flow at another webhook
type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr"`
	URL     string   `xml:",chardata"`
}

// twimlDocument is the response root
type twimlDocument struct {
	XMLName xml.Name      `xml:"Response"`
	Verbs   []interface{} `xml:",any"`
}

// RenderTwiML serializes the verbs into a TwiML document
func RenderTwiML(verbs ...interface{}) (string, error) {
	doc := twimlDocument{Verbs: verbs}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render twiml: %w", err)
	}

	return xml.Header + string(body), nil
}
