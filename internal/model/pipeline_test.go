package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPipelineStateAdvanceIsMonotonic(t *testing.T) {
	s := NewPipelineState("job", "case", "", "text")
	s.Advance("DocumentClassifier", 15)
	s.Advance("MetadataExtractor", 10)
	require.Equal(t, 15, s.ProgressPercent)
	require.Equal(t, "MetadataExtractor", s.CurrentAgent)
	s.Advance("MetadataExtractor", 140)
	require.Equal(t, 100, s.ProgressPercent)
}

func TestPipelineStateApplyWritesOnce(t *testing.T) {
	s := NewPipelineState("job", "case", "", "text")
	first := &Classification{DocumentType: DocumentTypeEmail}
	require.NoError(t, s.Apply(StateDelta{Classification: first}))
	err := s.Apply(StateDelta{
		Classification: &Classification{DocumentType: DocumentTypeContract},
		Metadata:       &Metadata{},
	})
	require.ErrorIs(t, err, ErrStageAlreadyMerged)
	require.Equal(t, DocumentTypeEmail, s.Classification.DocumentType)
	require.Nil(t, s.Metadata)
}

func TestPipelineStateTerminalIsFrozen(t *testing.T) {
	now := time.Unix(100, 0)
	s := NewPipelineState("job", "case", "", "text")
	s.Advance("HotDocDetector", 65)
	s.Complete()
	require.Equal(t, PipelineStatusCompleted, s.Status)
	require.Equal(t, 100, s.ProgressPercent)
	require.Empty(t, s.CurrentAgent)

	s.Advance("ContentAnalyzer", 70)
	s.RecordError("ContentAnalyzer", errors.New("late"), now)
	s.Fail("Pipeline", errors.New("late"), now)
	require.ErrorIs(t, s.Apply(StateDelta{HotDoc: &HotDoc{}}), ErrStateTerminal)
	require.Equal(t, PipelineStatusCompleted, s.Status)
	require.Empty(t, s.Errors)
	require.Empty(t, s.CurrentAgent)
}

func TestPipelineStateFailedStages(t *testing.T) {
	now := time.Unix(100, 0)
	s := NewPipelineState("job", "case", "", "text")
	s.RecordError("PrivilegeChecker", errors.New("a"), now)
	s.RecordError("ContentAnalyzer", errors.New("b"), now)
	s.RecordError("PrivilegeChecker", errors.New("c"), now)
	require.Equal(t, []string{"PrivilegeChecker", "ContentAnalyzer"}, s.FailedStages())

	snap := s.Snapshot()
	snap.Errors[0].Stage = "changed"
	require.Equal(t, "PrivilegeChecker", s.Errors[0].Stage)
}

func TestParseDocumentType(t *testing.T) {
	tests := []struct {
		in   string
		want DocumentType
	}{
		{in: "email", want: DocumentTypeEmail},
		{in: " Deposition ", want: DocumentTypeDeposition},
		{in: "discovery_response", want: DocumentTypeDiscoveryResponse},
		{in: "memo", want: DocumentTypeOther},
		{in: "", want: DocumentTypeOther},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, ParseDocumentType(tt.in))
		})
	}
}
