package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/discovery/internal/model"
	"github.com/xxxsen/discovery/internal/stage"
)

// StageName used for errors that are not attributable to a single stage.
const StageName = "Pipeline"

type checkpoint struct {
	entry int
	exit  int
}

var checkpoints = []checkpoint{
	{entry: 5, exit: 15},
	{entry: 20, exit: 35},
	{entry: 40, exit: 50},
	{entry: 55, exit: 65},
	{entry: 70, exit: 80},
	{entry: 85, exit: 100},
}

// ProgressFunc observes state snapshots as the run advances.
type ProgressFunc func(ctx context.Context, state model.PipelineState)

type Input struct {
	JobID       string
	CaseID      string
	DocumentURL string
	RawText     string
	// OnProgress observes this run only, after the orchestrator-wide observer.
	OnProgress  ProgressFunc
}

// Stages holds the six analysis steps in their fixed order.
type Stages struct {
	Classifier        stage.Stage
	MetadataExtractor stage.Stage
	PrivilegeChecker  stage.Stage
	HotDocDetector    stage.Stage
	ContentAnalyzer   stage.Stage
	CrossReference    stage.Stage
}

func (s Stages) ordered() []stage.Stage {
	return []stage.Stage{
		s.Classifier,
		s.MetadataExtractor,
		s.PrivilegeChecker,
		s.HotDocDetector,
		s.ContentAnalyzer,
		s.CrossReference,
	}
}

type Orchestrator struct {
	stages       []stage.Stage
	stageTimeout time.Duration
	onProgress   ProgressFunc
	now          func() time.Time
}

type Option func(o *Orchestrator)

func WithStageTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.stageTimeout = d
	}
}

func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) {
		o.onProgress = fn
	}
}

func withClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

func New(stages Stages, opts ...Option) (*Orchestrator, error) {
	ordered := stages.ordered()
	for i, s := range ordered {
		if s == nil {
			return nil, fmt.Errorf("stage %d is not configured", i)
		}
	}
	o := &Orchestrator{stages: ordered, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run executes every stage in order and always returns a terminal state.
// A failing stage is recorded in Errors and the run continues.
func (o *Orchestrator) Run(ctx context.Context, in Input) *model.PipelineState {
	logger := logutil.GetLogger(ctx).With(zap.String("job_id", in.JobID), zap.String("case_id", in.CaseID))
	state := model.NewPipelineState(in.JobID, in.CaseID, in.DocumentURL, in.RawText)
	if strings.TrimSpace(in.JobID) == "" || strings.TrimSpace(in.CaseID) == "" {
		state.Fail(StageName, errors.New("job id and case id are required"), o.now())
		logger.Error("pipeline rejected input")
		o.notify(ctx, in, state)
		return state
	}
	logger.Info("pipeline started", zap.Int("text_len", len(in.RawText)))
	start := time.Now()
	for i, s := range o.stages {
		cp := checkpoints[i]
		state.Advance(s.Name(), cp.entry)
		o.notify(ctx, in, state)

		delta, err := o.runStage(ctx, s, state.Snapshot())
		if err != nil {
			state.RecordError(s.Name(), err, o.now())
		}
		if !delta.IsEmpty() {
			if mergeErr := state.Apply(delta); mergeErr != nil {
				state.RecordError(s.Name(), mergeErr, o.now())
			}
		}
		state.Advance(s.Name(), cp.exit)
		o.notify(ctx, in, state)
	}
	state.Complete()
	o.notify(ctx, in, state)
	logger.Info("pipeline finished",
		zap.Duration("duration", time.Since(start)),
		zap.Strings("failed_stages", state.FailedStages()),
	)
	return state
}

func (o *Orchestrator) runStage(ctx context.Context, s stage.Stage, snapshot model.PipelineState) (delta model.StateDelta, err error) {
	if o.stageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.stageTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			logutil.GetLogger(ctx).Error("stage panicked",
				zap.String("stage", s.Name()),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			delta = model.StateDelta{}
			err = fmt.Errorf("stage panicked: %v", r)
		}
	}()
	return s.Run(ctx, snapshot)
}

func (o *Orchestrator) notify(ctx context.Context, in Input, state *model.PipelineState) {
	if o.onProgress != nil {
		o.onProgress(ctx, state.Snapshot())
	}
	if in.OnProgress != nil {
		in.OnProgress(ctx, state.Snapshot())
	}
}

// CompletedStages maps progress onto the stages whose exit checkpoint has
// been reached.
func CompletedStages(progress int) []string {
	names := stage.Names()
	out := make([]string, 0, len(names))
	for i, cp := range checkpoints {
		if progress >= cp.exit {
			out = append(out, names[i])
		}
	}
	return out
}
