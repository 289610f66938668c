package ame

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

type manifest struct {
	XMLName                  xml.Name `xml:"manifest"`
	Version                  string   `xml:"version,attr"`
	SourceFilePath           string   `xml:"SourceFilePath"`
	DestinationPath          string   `xml:"DestinationPath"`
	SourcePresetPath         string   `xml:"SourcePresetPath"`
	OverwriteDestination     string   `xml:"OverwriteDestinationIfPresent,omitempty"`
	NotificationTarget       string   `xml:"notificationTarget,omitempty"`
	BackupNotificationTarget string   `xml:"BackupNotificationTarget,omitempty"`
	NotificationRate         string   `xml:"NotificationRateInMilliseconds,omitempty"`
}

// BuildManifest renders the XML document posted to /job.
func BuildManifest(sub Submission) ([]byte, error) {
	doc := manifest{
		Version:                  "1.0",
		SourceFilePath:           sub.SourceFilePath,
		DestinationPath:          sub.DestinationPath,
		SourcePresetPath:         sub.SourcePresetPath,
		NotificationTarget:       sub.NotificationTarget,
		BackupNotificationTarget: sub.BackupNotificationTarget,
	}
	if sub.OverwriteDestination != nil {
		doc.OverwriteDestination = strconv.FormatBool(*sub.OverwriteDestination)
	}
	if sub.NotificationRateMillis != nil {
		doc.NotificationRate = strconv.Itoa(*sub.NotificationRateMillis)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}

type payload struct {
	XMLName          xml.Name      `xml:"payload"`
	ServerStatus     *string       `xml:"ServerStatus"`
	JobStatus        *string       `xml:"JobStatus"`
	JobID            *string       `xml:"JobId"`
	JobProgress      *string       `xml:"JobProgress"`
	Details          *string       `xml:"Details"`
	SubmitResult     *string       `xml:"SubmitResult"`
	ServerIP         *string       `xml:"ServerIP"`
	ServerPort       *string       `xml:"ServerPort"`
	RestartThreshold *string       `xml:"RestartThreshold"`
	JobHistorySize   *string       `xml:"JobHistorySize"`
	SourceFilePath   *string       `xml:"SourceFilePath"`
	DestinationPath  *string       `xml:"DestinationPath"`
	SourcePresetPath *string       `xml:"SourcePresetPath"`
	CompletedJobs    *completedXML `xml:"CompletedJobs"`
}

type completedXML struct {
	Jobs []historicXML `xml:"Job"`
}

type historicXML struct {
	JobID            string `xml:"JobId"`
	JobStatus        string `xml:"JobStatus"`
	Details          string `xml:"Details"`
	SourceFilePath   string `xml:"SourceFilePath"`
	DestinationPath  string `xml:"DestinationPath"`
	SourcePresetPath string `xml:"SourcePresetPath"`
}

func decodePayload(body []byte) (*payload, error) {
	var doc payload
	if err := xml.Unmarshal(body, &doc); err != nil {
		if strings.Contains(err.Error(), "expected element type <payload>") {
			return nil, fmt.Errorf("invalid XML (expected 'payload' document element): %w", err)
		}
		return nil, err
	}
	return &doc, nil
}

func text(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func number(value *string) int {
	parsed, err := strconv.Atoi(text(value))
	if err != nil {
		return 0
	}
	return parsed
}

func progress(value *string) *float64 {
	raw := text(value)
	if raw == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &parsed
}

func (p *payload) snapshot() JobStatusSnapshot {
	return JobStatusSnapshot{
		ServerStatus:     ParseServerStatus(text(p.ServerStatus)),
		ServerStatusText: text(p.ServerStatus),
		JobStatus:        ParseJobStatus(text(p.JobStatus)),
		JobStatusText:    text(p.JobStatus),
		JobID:            text(p.JobID),
		Progress:         progress(p.JobProgress),
		Details:          text(p.Details),
	}
}

// ParseSubmitResponse decodes the body returned by POST /job.
func ParseSubmitResponse(body []byte) (*SubmitStatus, error) {
	doc, err := decodePayload(body)
	if err != nil {
		return nil, err
	}
	return &SubmitStatus{
		Result:            ParseSubmitResult(text(doc.SubmitResult)),
		ResultText:        text(doc.SubmitResult),
		JobStatusSnapshot: doc.snapshot(),
	}, nil
}

// ParseJobStatusResponse decodes the body returned by GET /job.
func ParseJobStatusResponse(body []byte) (*JobStatusSnapshot, error) {
	doc, err := decodePayload(body)
	if err != nil {
		return nil, err
	}
	snap := doc.snapshot()
	return &snap, nil
}

// ParseServerResponse decodes the body returned by GET /server.
func ParseServerResponse(body []byte) (*ServerInfo, error) {
	doc, err := decodePayload(body)
	if err != nil {
		return nil, err
	}
	return &ServerInfo{
		ServerIP:          text(doc.ServerIP),
		ServerPort:        number(doc.ServerPort),
		RestartThreshold:  number(doc.RestartThreshold),
		JobHistorySize:    number(doc.JobHistorySize),
		JobStatusSnapshot: doc.snapshot(),
	}, nil
}

// ParseHistoryResponse decodes the body returned by GET /history.
func ParseHistoryResponse(body []byte) (*JobHistory, error) {
	doc, err := decodePayload(body)
	if err != nil {
		return nil, err
	}
	history := &JobHistory{
		JobStatusSnapshot: doc.snapshot(),
		SourceFilePath:    text(doc.SourceFilePath),
		DestinationPath:   text(doc.DestinationPath),
		SourcePresetPath:  text(doc.SourcePresetPath),
		Jobs:              []HistoricJob{},
	}
	if doc.CompletedJobs != nil {
		for _, entry := range doc.CompletedJobs.Jobs {
			history.Jobs = append(history.Jobs, HistoricJob{
				JobID:            strings.TrimSpace(entry.JobID),
				JobStatus:        ParseJobStatus(entry.JobStatus),
				JobStatusText:    strings.TrimSpace(entry.JobStatus),
				Details:          strings.TrimSpace(entry.Details),
				SourceFilePath:   strings.TrimSpace(entry.SourceFilePath),
				DestinationPath:  strings.TrimSpace(entry.DestinationPath),
				SourcePresetPath: strings.TrimSpace(entry.SourcePresetPath),
			})
		}
	}
	return history, nil
}
