package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/redis/go-redis/v9"
)

const (
	checkpointKeyPrefix = "confab:checkpoint:"
	checkpointIndexKey  = "confab:checkpoints"
)

var ErrNotFound = errors.New("checkpoint not found")

// Turn is one conversation entry in storable form. Only text survives a
// checkpoint; inline data and tool-call parts are dropped on save.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Checkpoint is a named snapshot of a conversation.
type Checkpoint struct {
	Tag     string    `json:"tag"`
	SavedAt time.Time `json:"saved_at"`
	Turns   []Turn    `json:"turns"`
}

// CheckpointStore persists conversation snapshots in Redis so a session can
// be resumed later under a tag.
type CheckpointStore struct {
	client *redis.Client
}

func NewCheckpointStore(redisURL string) (*CheckpointStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &CheckpointStore{client: client}, nil
}

func (s *CheckpointStore) Close() error {
	return s.client.Close()
}

// Save stores the history under tag, overwriting any previous snapshot with
// the same tag.
func (s *CheckpointStore) Save(ctx context.Context, tag string, history []*genai.Content) error {
	if strings.TrimSpace(tag) == "" {
		return errors.New("checkpoint tag cannot be empty")
	}

	checkpoint := Checkpoint{
		Tag:     tag,
		SavedAt: time.Now().UTC(),
		Turns:   FlattenHistory(history),
	}
	data, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to serialize checkpoint %s: %w", tag, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, checkpointKeyPrefix+tag, data, 0)
	pipe.SAdd(ctx, checkpointIndexKey, tag)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save checkpoint %s: %w", tag, err)
	}
	return nil
}

// Load returns the snapshot saved under tag.
func (s *CheckpointStore) Load(ctx context.Context, tag string) (*Checkpoint, error) {
	data, err := s.client.Get(ctx, checkpointKeyPrefix+tag).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, tag)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint %s: %w", tag, err)
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s: %w", tag, err)
	}
	return &checkpoint, nil
}

// List returns all saved checkpoints, newest first.
func (s *CheckpointStore) List(ctx context.Context) ([]Checkpoint, error) {
	tags, err := s.client.SMembers(ctx, checkpointIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	checkpoints := make([]Checkpoint, 0, len(tags))
	for _, tag := range tags {
		checkpoint, err := s.Load(ctx, tag)
		if errors.Is(err, ErrNotFound) {
			// Index entry without a blob; drop it.
			s.client.SRem(ctx, checkpointIndexKey, tag)
			continue
		}
		if err != nil {
			return nil, err
		}
		checkpoints = append(checkpoints, *checkpoint)
	}

	sort.Slice(checkpoints, func(i, j int) bool {
		return checkpoints[i].SavedAt.After(checkpoints[j].SavedAt)
	})
	return checkpoints, nil
}

// Delete removes the snapshot saved under tag.
func (s *CheckpointStore) Delete(ctx context.Context, tag string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, checkpointKeyPrefix+tag)
	pipe.SRem(ctx, checkpointIndexKey, tag)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete checkpoint %s: %w", tag, err)
	}
	return nil
}

// FlattenHistory converts live history into storable turns. Text parts within
// a turn are joined; turns with no text at all are skipped.
func FlattenHistory(history []*genai.Content) []Turn {
	turns := make([]Turn, 0, len(history))
	for _, content := range history {
		if content == nil {
			continue
		}
		var text strings.Builder
		for _, part := range content.Parts {
			if t, ok := part.(genai.Text); ok {
				text.WriteString(string(t))
			}
		}
		if text.Len() == 0 {
			continue
		}
		turns = append(turns, Turn{Role: content.Role, Text: text.String()})
	}
	return turns
}

// ExpandHistory converts stored turns back into live history.
func ExpandHistory(turns []Turn) []*genai.Content {
	history := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		history = append(history, &genai.Content{
			Role:  turn.Role,
			Parts: []genai.Part{genai.Text(turn.Text)},
		})
	}
	return history
}
