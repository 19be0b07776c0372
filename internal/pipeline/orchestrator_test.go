package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/discovery/internal/model"
	"github.com/xxxsen/discovery/internal/stage"
)

type fakeStage struct {
	name  string
	run   func(ctx context.Context, st model.PipelineState) (model.StateDelta, error)
	calls int
}

func (f *fakeStage) Name() string { return f.name }

func (f *fakeStage) Run(ctx context.Context, st model.PipelineState) (model.StateDelta, error) {
	f.calls++
	return f.run(ctx, st)
}

func okStages() (Stages, []*fakeStage) {
	mk := func(name string, delta func() model.StateDelta) *fakeStage {
		return &fakeStage{name: name, run: func(ctx context.Context, st model.PipelineState) (model.StateDelta, error) {
			return delta(), nil
		}}
	}
	fs := []*fakeStage{
		mk(stage.NameClassifier, func() model.StateDelta {
			return model.StateDelta{Classification: &model.Classification{DocumentType: model.DocumentTypeEmail}}
		}),
		mk(stage.NameMetadataExtractor, func() model.StateDelta { return model.StateDelta{Metadata: &model.Metadata{}} }),
		mk(stage.NamePrivilegeChecker, func() model.StateDelta { return model.StateDelta{Privilege: &model.Privilege{}} }),
		mk(stage.NameHotDocDetector, func() model.StateDelta { return model.StateDelta{HotDoc: &model.HotDoc{}} }),
		mk(stage.NameContentAnalyzer, func() model.StateDelta {
			return model.StateDelta{ContentAnalysis: &model.ContentAnalysis{Summary: "s"}}
		}),
		mk(stage.NameCrossReference, func() model.StateDelta { return model.StateDelta{CrossReference: &model.CrossReference{}} }),
	}
	return Stages{
		Classifier:        fs[0],
		MetadataExtractor: fs[1],
		PrivilegeChecker:  fs[2],
		HotDocDetector:    fs[3],
		ContentAnalyzer:   fs[4],
		CrossReference:    fs[5],
	}, fs
}

func fixedClock() time.Time { return time.Unix(1700000000, 0) }

func TestOrchestratorRunsAllStages(t *testing.T) {
	stages, fs := okStages()
	var seen []model.PipelineState
	o, err := New(stages, withClock(fixedClock), WithProgress(func(ctx context.Context, st model.PipelineState) {
		seen = append(seen, st)
	}))
	require.NoError(t, err)

	st := o.Run(context.Background(), Input{JobID: "job", CaseID: "case", RawText: "text"})
	require.Equal(t, model.PipelineStatusCompleted, st.Status)
	require.Equal(t, 100, st.ProgressPercent)
	require.Empty(t, st.CurrentAgent)
	require.Empty(t, st.Errors)
	require.Equal(t, model.DocumentTypeEmail, st.Classification.DocumentType)
	require.Equal(t, "s", st.ContentAnalysis.Summary)
	for _, f := range fs {
		require.Equal(t, 1, f.calls)
	}

	// two notifications per stage plus completion
	require.Len(t, seen, 13)
	prev := 0
	for _, s := range seen {
		require.GreaterOrEqual(t, s.ProgressPercent, prev)
		prev = s.ProgressPercent
	}
	require.Equal(t, 5, seen[0].ProgressPercent)
	require.Equal(t, stage.NameClassifier, seen[0].CurrentAgent)
	require.Equal(t, 85, seen[10].ProgressPercent)
	require.Equal(t, stage.NameCrossReference, seen[10].CurrentAgent)
}

func TestOrchestratorIsolatesStageFailure(t *testing.T) {
	stages, fs := okStages()
	fs[2].run = func(ctx context.Context, st model.PipelineState) (model.StateDelta, error) {
		return model.StateDelta{Privilege: &model.Privilege{Recommendation: model.RecommendationReviewRequired}}, errors.New("llm down")
	}
	o, err := New(stages, withClock(fixedClock))
	require.NoError(t, err)

	st := o.Run(context.Background(), Input{JobID: "job", CaseID: "case", RawText: "text"})
	require.Equal(t, model.PipelineStatusCompleted, st.Status)
	require.Len(t, st.Errors, 1)
	require.Equal(t, stage.NamePrivilegeChecker, st.Errors[0].Stage)
	require.Equal(t, "llm down", st.Errors[0].Error)
	require.Equal(t, fixedClock(), st.Errors[0].Timestamp)
	require.Equal(t, model.RecommendationReviewRequired, st.Privilege.Recommendation)
	require.NotNil(t, st.HotDoc)
	require.NotNil(t, st.CrossReference)
}

func TestOrchestratorRecoversPanics(t *testing.T) {
	stages, fs := okStages()
	fs[3].run = func(ctx context.Context, st model.PipelineState) (model.StateDelta, error) {
		panic("nil map")
	}
	o, err := New(stages)
	require.NoError(t, err)

	st := o.Run(context.Background(), Input{JobID: "job", CaseID: "case", RawText: "text"})
	require.Equal(t, model.PipelineStatusCompleted, st.Status)
	require.Equal(t, []string{stage.NameHotDocDetector}, st.FailedStages())
	require.Nil(t, st.HotDoc)
	require.NotNil(t, st.ContentAnalysis)
}

func TestOrchestratorStagesSeeEarlierOutput(t *testing.T) {
	stages, fs := okStages()
	var sawType model.DocumentType
	fs[1].run = func(ctx context.Context, st model.PipelineState) (model.StateDelta, error) {
		sawType = st.Classification.DocumentType
		return model.StateDelta{Metadata: &model.Metadata{}}, nil
	}
	o, err := New(stages)
	require.NoError(t, err)
	o.Run(context.Background(), Input{JobID: "job", CaseID: "case", RawText: "text"})
	require.Equal(t, model.DocumentTypeEmail, sawType)
}

func TestOrchestratorAppliesStageTimeout(t *testing.T) {
	stages, fs := okStages()
	fs[4].run = func(ctx context.Context, st model.PipelineState) (model.StateDelta, error) {
		<-ctx.Done()
		return model.StateDelta{}, ctx.Err()
	}
	o, err := New(stages, WithStageTimeout(20*time.Millisecond))
	require.NoError(t, err)
	st := o.Run(context.Background(), Input{JobID: "job", CaseID: "case", RawText: "text"})
	require.Equal(t, []string{stage.NameContentAnalyzer}, st.FailedStages())
	require.Equal(t, model.PipelineStatusCompleted, st.Status)
}

func TestOrchestratorRejectsMissingIdentity(t *testing.T) {
	stages, fs := okStages()
	o, err := New(stages)
	require.NoError(t, err)
	st := o.Run(context.Background(), Input{JobID: "", CaseID: "case", RawText: "text"})
	require.Equal(t, model.PipelineStatusFailed, st.Status)
	require.Len(t, st.Errors, 1)
	require.Equal(t, StageName, st.Errors[0].Stage)
	require.Equal(t, 0, fs[0].calls)
}

func TestNewRequiresAllStages(t *testing.T) {
	stages, _ := okStages()
	stages.HotDocDetector = nil
	_, err := New(stages)
	require.Error(t, err)
}

func TestCompletedStages(t *testing.T) {
	require.Empty(t, CompletedStages(10))
	require.Equal(t, []string{stage.NameClassifier}, CompletedStages(15))
	require.Equal(t, []string{stage.NameClassifier, stage.NameMetadataExtractor, stage.NamePrivilegeChecker}, CompletedStages(55))
	require.Len(t, CompletedStages(100), 6)
}

func TestOrchestratorPerRunObserver(t *testing.T) {
	stages, _ := okStages()
	var global, local int
	o, err := New(stages, WithProgress(func(ctx context.Context, st model.PipelineState) { global++ }))
	require.NoError(t, err)
	o.Run(context.Background(), Input{
		JobID:      "job",
		CaseID:     "case",
		RawText:    "text",
		OnProgress: func(ctx context.Context, st model.PipelineState) { local++ },
	})
	require.Equal(t, 13, global)
	require.Equal(t, 13, local)
}
