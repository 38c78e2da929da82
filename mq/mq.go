package mq

import (
	"context"
	"encoding/json"
	"fmt"
)

type MessageQueue interface {
	Send(ctx context.Context, body string) error
	// Receive long-polls for one message; nil means none arrived.
	Receive(ctx context.Context, visibilityTimeout int32) (*Message, error)
	Delete(ctx context.Context, msg *Message) error
}

type Message struct {
	// Id is the receipt handle used to delete the message
	Id   string
	Body string
}

type MessageType string

const (
	// PurgeUserItems asks a worker to delete every item of a removed account
	PurgeUserItems MessageType = "purge_user_items"
)

// Job is the body carried by every queued message.
type Job struct {
	Type        MessageType `json:"type"`
	UserId      string      `json:"userId"`
	RequestedAt int64       `json:"requestedAt"`
}

func EncodeJob(job Job) (string, error) {
	b, err := json.Marshal(job)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func DecodeJob(body string) (Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return Job{}, fmt.Errorf("malformed job: %w", err)
	}
	if job.Type == "" || job.UserId == "" {
		return Job{}, fmt.Errorf("malformed job: missing type or userId")
	}
	return job, nil
}
