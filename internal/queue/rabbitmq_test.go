package queue

import (
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

func TestNewPublishing(t *testing.T) {
	t.Parallel()

	now := time.Now()
	past := now.Add(-time.Second)
	soon := now.Add(90 * time.Second)

	tests := []struct {
		name           string
		notAfter       *time.Time
		wantErr        bool
		wantExpiration string
	}{
		{name: "no deadline"},
		{name: "deadline becomes ttl", notAfter: &soon, wantExpiration: strconv.FormatInt((90 * time.Second).Milliseconds(), 10)},
		{name: "already expired", notAfter: &past, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			job := NewJob(JobTypeProfileAnalysis, uuid.New(), nil)
			job.NotAfter = tt.notAfter

			p, err := newPublishing(job, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("newPublishing() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if p.Expiration != tt.wantExpiration {
				t.Errorf("Expiration = %q, want %q", p.Expiration, tt.wantExpiration)
			}
			if p.DeliveryMode != amqp.Persistent || p.MessageId != job.ID.String() || p.Type != string(JobTypeProfileAnalysis) {
				t.Errorf("unexpected publishing: %+v", p)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	fresh := NewJob(JobTypeProfileAnalysis, uuid.New(), nil)
	stale := NewJob(JobTypeProfileAnalysis, uuid.New(), nil)
	past := time.Now().Add(-time.Minute)
	stale.NotAfter = &past

	encode := func(j *Job) []byte {
		b, err := json.Marshal(j)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return b
	}

	tests := []struct {
		name string
		body []byte
		want disposition
	}{
		{name: "fresh job", body: encode(fresh), want: deliver},
		{name: "expired job", body: encode(stale), want: discard},
		{name: "garbage", body: []byte("{not json"), want: deadLetter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			job, got, err := classify(tt.body)
			if got != tt.want {
				t.Fatalf("disposition = %v, want %v (err %v)", got, tt.want, err)
			}
			if got == deliver && job.ID != fresh.ID {
				t.Errorf("job ID = %s, want %s", job.ID, fresh.ID)
			}
		})
	}
}

func TestTopology(t *testing.T) {
	t.Parallel()

	q := &RabbitMQQueue{queueName: "jobs", dlqName: "jobs_dlq", exchangeName: "ex"}
	top := q.topology()
	if len(top) != 2 || top[0].queue != "jobs_dlq" || top[1].queue != "jobs" {
		t.Fatalf("unexpected topology order: %+v", top)
	}
	if top[1].args["x-dead-letter-routing-key"] != dlqRoutingKey || top[1].args["x-dead-letter-exchange"] != "ex" {
		t.Errorf("main queue is not dead-lettered to the DLQ: %+v", top[1].args)
	}
}
