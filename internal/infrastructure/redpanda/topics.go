package redpanda

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

const (
	// TopicRecordEvents carries record lifecycle events relayed from the
	// outbox, keyed by doctor id.
	TopicRecordEvents = "records.events"

	// TopicRenderRequests carries prescription states awaiting layout.
	TopicRenderRequests = "documents.render.requests"

	// TopicRenderJobs carries built print jobs for the PDF renderer.
	TopicRenderJobs = "documents.render.jobs"

	TopicDeadLetter = "dead.letter"
)

// TopicSpec describes a topic the services depend on.
type TopicSpec struct {
	Name       string
	Partitions int32
	Retention  time.Duration
}

func (s TopicSpec) configs() map[string]*string {
	retention := strconv.FormatInt(s.Retention.Milliseconds(), 10)
	policy := "delete"
	compression := "lz4"
	return map[string]*string{
		"retention.ms":     &retention,
		"cleanup.policy":   &policy,
		"compression.type": &compression,
	}
}

const day = 24 * time.Hour

// Topics is the topic catalog created by `docctl topics ensure`.
var Topics = []TopicSpec{
	{Name: TopicRecordEvents, Partitions: 6, Retention: 7 * day},
	{Name: TopicRenderRequests, Partitions: 6, Retention: day},
	{Name: TopicRenderJobs, Partitions: 6, Retention: day},
	{Name: TopicDeadLetter, Partitions: 3, Retention: 7 * day},
}

// Admin wraps kadm for topic provisioning and lag inspection.
type Admin struct {
	client      *kadm.Client
	replication int16
	logger      *zap.Logger
}

// NewAdmin connects an admin client. replication is applied to every
// topic Ensure creates; use 1 against a single-node cluster.
func NewAdmin(brokers []string, replication int16, logger *zap.Logger) (*Admin, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if replication <= 0 {
		replication = 1
	}
	cl, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return nil, fmt.Errorf("admin client: %w", err)
	}
	return &Admin{client: kadm.NewClient(cl), replication: replication, logger: logger}, nil
}

// TopicStatus reports what Ensure did for one topic.
type TopicStatus struct {
	Name       string
	Partitions int32
	Created    bool
}

// Ensure creates each missing topic. Existing topics are left untouched.
func (a *Admin) Ensure(ctx context.Context, specs []TopicSpec) ([]TopicStatus, error) {
	out := make([]TopicStatus, 0, len(specs))
	for _, spec := range specs {
		resp, err := a.client.CreateTopic(ctx, spec.Partitions, a.replication, spec.configs(), spec.Name)
		status := TopicStatus{Name: spec.Name, Partitions: spec.Partitions, Created: true}
		switch {
		case errors.Is(err, kerr.TopicAlreadyExists) || errors.Is(resp.Err, kerr.TopicAlreadyExists):
			status.Created = false
		case err != nil:
			return out, fmt.Errorf("create %s: %w", spec.Name, err)
		case resp.Err != nil:
			return out, fmt.Errorf("create %s: %w", spec.Name, resp.Err)
		}
		a.logger.Info("topic ensured", zap.String("topic", spec.Name), zap.Bool("created", status.Created))
		out = append(out, status)
	}
	return out, nil
}

// TopicInfo is a topic present on the cluster.
type TopicInfo struct {
	Name       string
	Partitions int
}

// List returns the non-internal topics sorted by name.
func (a *Admin) List(ctx context.Context) ([]TopicInfo, error) {
	details, err := a.client.ListTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	var out []TopicInfo
	for _, d := range details.Sorted() {
		out = append(out, TopicInfo{Name: d.Topic, Partitions: len(d.Partitions)})
	}
	return out, nil
}

// PartitionLag is the lag of one consumer group on one partition.
type PartitionLag struct {
	Topic     string
	Partition int32
	Lag       int64
}

// Lag returns the group's per-partition lag ordered by topic and partition.
func (a *Admin) Lag(ctx context.Context, group string) ([]PartitionLag, error) {
	described, err := a.client.Lag(ctx, group)
	if err != nil {
		return nil, fmt.Errorf("lag for %s: %w", group, err)
	}

	var out []PartitionLag
	described.Each(func(g kadm.DescribedGroupLag) {
		for topic, partitions := range g.Lag {
			for partition, l := range partitions {
				out = append(out, PartitionLag{Topic: topic, Partition: partition, Lag: l.Lag})
			}
		}
	})
	slices.SortFunc(out, func(x, y PartitionLag) int {
		if c := cmp.Compare(x.Topic, y.Topic); c != 0 {
			return c
		}
		return cmp.Compare(x.Partition, y.Partition)
	})
	return out, nil
}

// Close closes the underlying client.
func (a *Admin) Close() {
	a.client.Close()
}
