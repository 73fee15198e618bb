// Package events parses trigger payloads into a small set of strongly shaped events.
//
// A payload is one of:
//   - [ScheduleEvent] : parameters supplied by a scheduled trigger
//   - [StorageNotificationBatch] : object-creation notifications ({"Records":[{"s3":{...}}]})
//   - [QueueMessageBatch] : queue messages whose bodies each wrap a storage notification batch
//
// The envelope shape is decided once in [Parse]; tasks only ever see [ObjectRef] values or a [ScheduleEvent].
package events

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/desertthunder/spotlake/internal/shared"
)

// Kind identifies which trigger shape an [Event] holds.
type Kind int

const (
	KindSchedule Kind = iota + 1
	KindStorage
	KindQueue
)

func (k Kind) String() string {
	switch k {
	case KindSchedule:
		return "schedule"
	case KindStorage:
		return "storage"
	case KindQueue:
		return "queue"
	default:
		return "unknown"
	}
}

// Event is the tagged union of trigger payloads.
type Event interface {
	Kind() Kind
	sealed()
}

// ScheduleEvent carries the parameters of a scheduled invocation. Empty fields mean "use the default".
type ScheduleEvent struct {
	UserName    string
	Category    string
	TimeWindow  string
	TargetEmail string
}

func (ScheduleEvent) Kind() Kind { return KindSchedule }
func (ScheduleEvent) sealed()    {}

// UnmarshalJSON accepts both snake_case and the camelCase names used by existing schedules
// (userName, topType, timeFrame, targetEmail).
func (e *ScheduleEvent) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		return fmt.Errorf("%w: schedule event must be a JSON object", shared.ErrMalformedPayload)
	}
	first := func(paths ...string) string {
		for _, p := range paths {
			if v := gjson.GetBytes(data, p); v.Exists() && v.String() != "" {
				return strings.TrimSpace(v.String())
			}
		}
		return ""
	}
	*e = ScheduleEvent{
		UserName:    first("user_name", "userName"),
		Category:    first("category", "topType", "endpoint"),
		TimeWindow:  first("time_window", "timeFrame", "timeWindow", "time_range"),
		TargetEmail: first("target_email", "targetEmail"),
	}
	return nil
}

// ObjectRef names one object from a storage notification. Key is already URL-unescaped.
type ObjectRef struct {
	Bucket string
	Key    string
}

// StorageNotificationBatch is one or more object-creation notifications.
type StorageNotificationBatch struct {
	Records []ObjectRef
}

func (StorageNotificationBatch) Kind() Kind { return KindStorage }
func (StorageNotificationBatch) sealed()    {}

// QueueMessage is one queue delivery wrapping a storage notification batch.
type QueueMessage struct {
	ID    string
	Batch StorageNotificationBatch
}

// QueueMessageBatch is one or more queue deliveries.
type QueueMessageBatch struct {
	Messages []QueueMessage
}

func (QueueMessageBatch) Kind() Kind { return KindQueue }
func (QueueMessageBatch) sealed()    {}

type storageEnvelope struct {
	Records []struct {
		S3 *struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key string `json:"key"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

type queueEnvelope struct {
	Records []struct {
		MessageID string `json:"messageId"`
		Body      string `json:"body"`
	} `json:"Records"`
}

// Parse decides which trigger shape data holds and decodes it.
func Parse(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: event is not valid JSON", shared.ErrMalformedPayload)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: event must be a JSON object", shared.ErrMalformedPayload)
	}

	records := root.Get("Records")
	switch {
	case !records.Exists():
		var ev ScheduleEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case !records.IsArray():
		return nil, fmt.Errorf("%w: Records must be an array", shared.ErrMalformedPayload)
	case records.Get("0.body").Exists():
		return parseQueue(data)
	default:
		return parseStorage(data)
	}
}

func parseStorage(data []byte) (StorageNotificationBatch, error) {
	var env storageEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return StorageNotificationBatch{}, fmt.Errorf("%w: storage notification: %v", shared.ErrMalformedPayload, err)
	}

	batch := StorageNotificationBatch{Records: make([]ObjectRef, 0, len(env.Records))}
	for i, r := range env.Records {
		if r.S3 == nil || r.S3.Object.Key == "" {
			return StorageNotificationBatch{}, fmt.Errorf("%w: record %d has no s3 object key", shared.ErrMalformedPayload, i)
		}
		key, err := url.QueryUnescape(r.S3.Object.Key)
		if err != nil {
			return StorageNotificationBatch{}, fmt.Errorf("%w: record %d key %q: %v", shared.ErrMalformedKey, i, r.S3.Object.Key, err)
		}
		batch.Records = append(batch.Records, ObjectRef{Bucket: r.S3.Bucket.Name, Key: key})
	}
	return batch, nil
}

func parseQueue(data []byte) (QueueMessageBatch, error) {
	var env queueEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return QueueMessageBatch{}, fmt.Errorf("%w: queue batch: %v", shared.ErrMalformedPayload, err)
	}

	batch := QueueMessageBatch{Messages: make([]QueueMessage, 0, len(env.Records))}
	for i, r := range env.Records {
		body := []byte(r.Body)
		if !gjson.ValidBytes(body) {
			return QueueMessageBatch{}, fmt.Errorf("%w: message %d body is not JSON", shared.ErrMalformedPayload, i)
		}

		msg := QueueMessage{ID: r.MessageID}
		// Test events sent when a notification is first configured carry no Records.
		if gjson.GetBytes(body, "Records").Exists() {
			inner, err := parseStorage(body)
			if err != nil {
				return QueueMessageBatch{}, fmt.Errorf("message %d: %w", i, err)
			}
			msg.Batch = inner
		}
		batch.Messages = append(batch.Messages, msg)
	}
	return batch, nil
}

// Objects flattens a storage or queue event into its object references, in delivery order.
func Objects(ev Event) ([]ObjectRef, error) {
	switch e := ev.(type) {
	case StorageNotificationBatch:
		return e.Records, nil
	case QueueMessageBatch:
		var refs []ObjectRef
		for _, m := range e.Messages {
			refs = append(refs, m.Batch.Records...)
		}
		return refs, nil
	case nil:
		return nil, fmt.Errorf("%w: no event", shared.ErrInvalidInput)
	default:
		return nil, fmt.Errorf("%w: %s event carries no object notifications", shared.ErrInvalidInput, ev.Kind())
	}
}

// Schedule returns the schedule parameters of ev. Any non-schedule event is an error.
func Schedule(ev Event) (ScheduleEvent, error) {
	if se, ok := ev.(ScheduleEvent); ok {
		return se, nil
	}
	if ev == nil {
		return ScheduleEvent{}, nil
	}
	return ScheduleEvent{}, fmt.Errorf("%w: expected a schedule event, got %s", shared.ErrInvalidInput, ev.Kind())
}
