package history

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/GoSim-25-26J-441/denas/pkg/utils"
	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/types/known/structpb"
)

// FileSink writes one file per run into Dir: a length-delimited stream of
// google.protobuf.Struct messages, the run header first and then one
// message per record in evaluation order.
type FileSink struct {
	Dir string
}

// NewFileSink creates the directory if needed and returns a sink writing into it
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory %s: %w", dir, err)
	}
	return &FileSink{Dir: dir}, nil
}

// Path returns the file a run's history is written to
func (s *FileSink) Path(info RunInfo) string {
	return filepath.Join(s.Dir, utils.HistoryFileName(info.RunIndex, info.SearchSpace, info.Seed))
}

// Write serializes the run. The file appears atomically under its final name.
func (s *FileSink) Write(ctx context.Context, info RunInfo, records []Record) error {
	path := s.Path(info)
	tmp, err := os.CreateTemp(s.Dir, ".history-*")
	if err != nil {
		return fmt.Errorf("create history file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := writeMessage(w, headerMap(info, len(records))); err != nil {
		tmp.Close()
		return err
	}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			tmp.Close()
			return err
		}
		if err := writeMessage(w, recordMap(rec)); err != nil {
			tmp.Close()
			return fmt.Errorf("record %d: %w", rec.Index, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush history file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close history file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename history file: %w", err)
	}
	return nil
}

func writeMessage(w io.Writer, m map[string]any) error {
	msg, err := structpb.NewStruct(m)
	if err != nil {
		return fmt.Errorf("encode history message: %w", err)
	}
	if _, err := protodelim.MarshalTo(w, msg); err != nil {
		return fmt.Errorf("write history message: %w", err)
	}
	return nil
}

func headerMap(info RunInfo, n int) map[string]any {
	return map[string]any{
		"experiment_id": info.ExperimentID,
		"run_id":        info.RunID,
		"run_index":     info.RunIndex,
		"search_space":  info.SearchSpace,
		"seed":          info.Seed,
		"strategy":      info.Strategy,
		"benchmark":     info.Benchmark,
		"objective":     info.Objective,
		"generations":   info.Generations,
		"pop_size":      info.PopSize,
		"started_at":    info.StartedAt.UTC().Format(time.RFC3339Nano),
		"evaluations":   n,
	}
}

func recordMap(rec Record) map[string]any {
	vector := make([]any, len(rec.Vector))
	for i, v := range rec.Vector {
		vector[i] = v
	}
	config := make(map[string]any, len(rec.Config))
	for k, v := range rec.Config {
		config[k] = v
	}
	m := map[string]any{
		"index":         rec.Index,
		"generation":    rec.Generation,
		"vector":        vector,
		"repaired":      rec.Repaired,
		"config":        config,
		"fingerprint":   rec.Fingerprint,
		"valid":         rec.Valid,
		"fitness":       rec.Fitness,
		"valid_error":   rec.Result.ValidError,
		"test_error":    rec.Result.TestError,
		"training_time": rec.Result.TrainingTime,
		"budget":        rec.Result.Budget,
		"time":          rec.Time.UTC().Format(time.RFC3339Nano),
	}
	if rec.Err != "" {
		m["error"] = rec.Err
	}
	return m
}

// ReadFile reads a history file written by FileSink. Numbers come back as
// float64, as google.protobuf.Value stores them.
func ReadFile(path string) (header map[string]any, records []map[string]any, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		msg := &structpb.Struct{}
		err := protodelim.UnmarshalFrom(r, msg)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read history message: %w", err)
		}
		if header == nil {
			header = msg.AsMap()
			continue
		}
		records = append(records, msg.AsMap())
	}
	if header == nil {
		return nil, nil, fmt.Errorf("history file %s is empty", path)
	}
	return header, records, nil
}
