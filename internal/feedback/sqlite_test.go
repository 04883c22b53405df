package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedback_Prepare(t *testing.T) {
	tests := []struct {
		name      string
		input     Feedback
		wantErr   string
		condition string
		agreed    bool
	}{
		{
			name:    "missing assessment id",
			input:   Feedback{SuggestedCondition: "Possible Polycystic Ovary Syndrome (PCOS)"},
			wantErr: "assessment_id is required",
		},
		{
			name:    "missing suggested condition",
			input:   Feedback{AssessmentID: "a-1"},
			wantErr: "suggested_condition is required",
		},
		{
			name:      "empty clinician condition accepts the suggestion",
			input:     Feedback{AssessmentID: "a-1", SuggestedCondition: "Likely Thyroid Dysfunction"},
			condition: "Likely Thyroid Dysfunction",
			agreed:    true,
		},
		{
			name: "case-insensitive agreement",
			input: Feedback{AssessmentID: "a-1", SuggestedCondition: "Likely Thyroid Dysfunction",
				ClinicianCondition: " likely thyroid dysfunction "},
			condition: "likely thyroid dysfunction",
			agreed:    true,
		},
		{
			name: "override",
			input: Feedback{AssessmentID: "a-1", SuggestedCondition: "Likely Thyroid Dysfunction",
				ClinicianCondition: "Subclinical hypothyroidism"},
			condition: "Subclinical hypothyroidism",
			agreed:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := tt.input
			err := fb.Prepare()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.condition, fb.ClinicianCondition)
			assert.Equal(t, tt.agreed, fb.ClinicianAgreed)
		})
	}
}

func TestNewSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "feedback.db")

	store, err := NewSQLiteStore(dbPath)

	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")
}

func TestSQLiteStore_Save(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	fb := &Feedback{
		AssessmentID:       "0b7c4a1e-assessment",
		EvidenceDomain:     "pcos",
		SuggestedCondition: "Possible Polycystic Ovary Syndrome (PCOS)",
		ClinicianCondition: "Possible Polycystic Ovary Syndrome (PCOS)",
		RiskLevel:          "High",
		Notes:              "Ultrasound pending",
	}

	err := store.Save(ctx, fb)

	require.NoError(t, err)
	assert.NotZero(t, fb.ID, "ID should be assigned")
	assert.True(t, fb.ClinicianAgreed)
	assert.False(t, fb.CreatedAt.IsZero(), "CreatedAt should be set")
	assert.False(t, fb.UpdatedAt.IsZero(), "UpdatedAt should be set")
}

func TestSQLiteStore_Save_Invalid(t *testing.T) {
	store := createTestStore(t)

	err := store.Save(context.Background(), &Feedback{EvidenceDomain: "thyroid"})
	assert.Error(t, err)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSQLiteStore_Save_Update(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	fb := &Feedback{
		AssessmentID:       "assessment-1",
		EvidenceDomain:     "thyroid",
		SuggestedCondition: "Likely Thyroid Dysfunction",
		RiskLevel:          "Moderate",
	}
	require.NoError(t, store.Save(ctx, fb))
	originalID := fb.ID

	fb.ClinicianCondition = "Subclinical hypothyroidism"
	fb.Notes = "Repeat TSH in 6 weeks"
	require.NoError(t, store.Save(ctx, fb))

	assert.Equal(t, originalID, fb.ID, "Should update existing record")

	retrieved, err := store.Get(ctx, "assessment-1", "thyroid")
	require.NoError(t, err)
	require.NotNil(t, retrieved)
	assert.Equal(t, "Subclinical hypothyroidism", retrieved.ClinicianCondition)
	assert.False(t, retrieved.ClinicianAgreed)
	assert.Equal(t, "Repeat TSH in 6 weeks", retrieved.Notes)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSQLiteStore_Get_PerDomain(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Feedback{
		AssessmentID:       "assessment-2",
		EvidenceDomain:     "pcos",
		SuggestedCondition: "Possible Polycystic Ovary Syndrome (PCOS)",
	}))
	require.NoError(t, store.Save(ctx, &Feedback{
		AssessmentID:       "assessment-2",
		EvidenceDomain:     "thyroid",
		SuggestedCondition: "Likely Thyroid Dysfunction",
		ClinicianCondition: "Euthyroid",
	}))

	pcos, err := store.Get(ctx, "assessment-2", "pcos")
	require.NoError(t, err)
	require.NotNil(t, pcos)
	assert.True(t, pcos.ClinicianAgreed)

	thyroid, err := store.Get(ctx, "assessment-2", "thyroid")
	require.NoError(t, err)
	require.NotNil(t, thyroid)
	assert.Equal(t, "Euthyroid", thyroid.ClinicianCondition)
	assert.False(t, thyroid.ClinicianAgreed)
}

func TestSQLiteStore_Get_NotFound(t *testing.T) {
	store := createTestStore(t)

	retrieved, err := store.Get(context.Background(), "missing", "")

	assert.NoError(t, err)
	assert.Nil(t, retrieved, "Should return nil for not found")
}

func TestSQLiteStore_List_Pagination(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Save(ctx, &Feedback{
			AssessmentID:       fmt.Sprintf("assessment-%d", i),
			EvidenceDomain:     "diabetes",
			SuggestedCondition: "Diabetes Mellitus",
		}))
	}

	page1, err := store.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page1, 2)

	page3, err := store.List(ctx, 2, 4)
	require.NoError(t, err)
	assert.Len(t, page3, 1)

	all, err := store.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "assessment-4", all[0].AssessmentID, "newest first")
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	fb := &Feedback{AssessmentID: "assessment-3", EvidenceDomain: "adrenal", SuggestedCondition: "Possible Adrenal Insufficiency"}
	require.NoError(t, store.Save(ctx, fb))

	require.NoError(t, store.Delete(ctx, fb.ID))

	retrieved, err := store.Get(ctx, "assessment-3", "adrenal")
	require.NoError(t, err)
	assert.Nil(t, retrieved)
}

func TestSQLiteStore_ExportImportJSON(t *testing.T) {
	source := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, source.Save(ctx, &Feedback{AssessmentID: "a", EvidenceDomain: "pcos", SuggestedCondition: "Possible Polycystic Ovary Syndrome (PCOS)"}))
	require.NoError(t, source.Save(ctx, &Feedback{AssessmentID: "b", EvidenceDomain: "thyroid", SuggestedCondition: "Likely Thyroid Dysfunction"}))

	var buf bytes.Buffer
	require.NoError(t, source.ExportJSON(ctx, &buf))

	var export FeedbackExport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &export))
	assert.Equal(t, "1.0", export.Version)
	assert.Equal(t, 2, export.Count)

	target := createTestStore(t)
	require.NoError(t, target.Save(ctx, &Feedback{AssessmentID: "a", EvidenceDomain: "pcos",
		SuggestedCondition: "Possible Polycystic Ovary Syndrome (PCOS)", ClinicianCondition: "Hyperprolactinaemia"}))

	imported, skipped, err := target.ImportJSON(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 1, imported)
	assert.Equal(t, 1, skipped)

	existing, err := target.Get(ctx, "a", "pcos")
	require.NoError(t, err)
	assert.Equal(t, "Hyperprolactinaemia", existing.ClinicianCondition, "Existing should not be overwritten")
}

func TestSQLiteStore_ExportJSON_Empty(t *testing.T) {
	store := createTestStore(t)

	var buf bytes.Buffer
	require.NoError(t, store.ExportJSON(context.Background(), &buf))
	assert.Contains(t, buf.String(), `"feedback": []`)
}

func TestSQLiteStore_ImportJSON_Invalid(t *testing.T) {
	store := createTestStore(t)

	_, _, err := store.ImportJSON(context.Background(), bytes.NewReader([]byte("{not json")))
	assert.Error(t, err)
}

func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
