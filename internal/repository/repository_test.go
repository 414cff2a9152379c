package repository

import (
	"context"
	"errors"
	"io"
	"iter"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaDevFox/task-systems/checkin-core/internal/domain"
)

const testUserID = "user_abc12345"

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// testStores yields a fresh store per backend; each is closed by t.Cleanup
func testStores(t *testing.T) iter.Seq2[string, Store] {
	return func(yield func(string, Store) bool) {
		if !yield("memory", NewInMemoryStore()) {
			return
		}

		badgerStore, err := NewBadgerStore(filepath.Join(t.TempDir(), "badger"), quietLogger())
		require.NoError(t, err)
		t.Cleanup(func() { badgerStore.Close() })
		if !yield("badger", badgerStore) {
			return
		}

		boltStore, err := NewBoltStore(filepath.Join(t.TempDir(), "checkin.bolt"))
		require.NoError(t, err)
		t.Cleanup(func() { boltStore.Close() })
		yield("bolt", boltStore)
	}
}

type note struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

func TestStorePutGetDelete(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.Put(ctx, "notes", "a", note{Text: "hello", Count: 1}))

			var got note
			require.NoError(t, store.Get(ctx, "notes", "a", &got))
			assert.Equal(t, note{Text: "hello", Count: 1}, got)

			require.NoError(t, store.Put(ctx, "notes", "a", note{Text: "replaced", Count: 2}))
			require.NoError(t, store.Get(ctx, "notes", "a", &got))
			assert.Equal(t, "replaced", got.Text)

			require.NoError(t, store.Delete(ctx, "notes", "a"))
			err := store.Get(ctx, "notes", "a", &got)
			assert.True(t, errors.Is(err, ErrNotFound))

			err = store.Delete(ctx, "notes", "a")
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestStoreMissingCollection(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			var got note
			err := store.Get(ctx, "nothing_here", "x", &got)
			assert.True(t, errors.Is(err, ErrNotFound))

			visited := 0
			require.NoError(t, store.Scan(ctx, "nothing_here", func(string, []byte) error {
				visited++
				return nil
			}))
			assert.Zero(t, visited)
		})
	}
}

func TestStoreRejectsEmptyAddress(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			assert.True(t, errors.Is(store.Put(ctx, "", "id", note{}), ErrInvalidDocument))
			assert.True(t, errors.Is(store.Put(ctx, "notes", "", note{}), ErrInvalidDocument))
		})
	}
}

func TestStoreScanIsolatesCollections(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.Put(ctx, "notes", "b", note{Text: "b"}))
			require.NoError(t, store.Put(ctx, "notes", "a", note{Text: "a"}))
			require.NoError(t, store.Put(ctx, "notes_archive", "c", note{Text: "c"}))

			var ids []string
			require.NoError(t, store.Scan(ctx, "notes", func(id string, _ []byte) error {
				ids = append(ids, id)
				return nil
			}))
			assert.Equal(t, []string{"a", "b"}, ids)
		})
	}
}

func TestStoreScanStopsOnError(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Put(ctx, "notes", "a", note{}))
			require.NoError(t, store.Put(ctx, "notes", "b", note{}))

			stop := errors.New("stop")
			visited := 0
			err := store.Scan(ctx, "notes", func(string, []byte) error {
				visited++
				return stop
			})
			assert.True(t, errors.Is(err, stop))
			assert.Equal(t, 1, visited)
		})
	}
}

func TestRepositoryTargets(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := NewRepository(store, quietLogger())

			event := &domain.Target{
				Kind:     domain.KindAttendance,
				Name:     "Orientation Day",
				Location: "Hall A",
				Active:   true,
			}
			require.NoError(t, repo.CreateTarget(ctx, event))
			assert.NotEmpty(t, event.ID)
			assert.False(t, event.CreatedAt.IsZero())

			module := &domain.Target{
				ID:          "mod-42",
				Kind:        domain.KindTraining,
				Name:        "Fire Safety",
				Description: "Evacuation basics",
			}
			require.NoError(t, repo.CreateTarget(ctx, module))

			err := repo.CreateTarget(ctx, &domain.Target{ID: "mod-42", Kind: domain.KindTraining, Name: "Dup", Description: "x"})
			assert.True(t, errors.Is(err, ErrAlreadyExists))

			got, err := repo.GetTarget(ctx, domain.KindTraining, "mod-42")
			require.NoError(t, err)
			assert.Equal(t, "Fire Safety", got.Name)

			// Targets of one kind are not visible under another
			_, err = repo.GetTarget(ctx, domain.KindAttendance, "mod-42")
			assert.True(t, errors.Is(err, ErrNotFound))

			events, err := repo.ListTargets(ctx, domain.KindAttendance)
			require.NoError(t, err)
			require.Len(t, events, 1)
			assert.Equal(t, event.ID, events[0].ID)

			got.Name = "Fire Safety 101"
			require.NoError(t, repo.UpdateTarget(ctx, got))
			updated, err := repo.GetTarget(ctx, domain.KindTraining, "mod-42")
			require.NoError(t, err)
			assert.Equal(t, "Fire Safety 101", updated.Name)
			assert.True(t, updated.CreatedAt.Equal(module.CreatedAt))
		})
	}
}

func TestRepositoryTargetValidation(t *testing.T) {
	repo := NewRepository(NewInMemoryStore(), quietLogger())
	ctx := context.Background()

	err := repo.CreateTarget(ctx, &domain.Target{Kind: domain.KindAttendance, Name: "No location"})
	assert.True(t, errors.Is(err, ErrInvalidDocument))

	err = repo.CreateTarget(ctx, nil)
	assert.True(t, errors.Is(err, ErrInvalidDocument))

	err = repo.UpdateTarget(ctx, &domain.Target{ID: "ghost", Kind: domain.KindCompetency, Name: "CPR", Category: "First aid"})
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = repo.ListTargets(ctx, domain.Kind("bogus"))
	assert.Error(t, err)
}

func TestRepositoryAttendance(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := NewRepository(store, quietLogger())
			base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

			_, err := repo.FindOpenAttendance(ctx, testUserID, "evt-1")
			assert.True(t, errors.Is(err, ErrNotFound))

			open := &domain.AttendanceRecord{
				UserID:      testUserID,
				EventID:     "evt-1",
				EventName:   "Orientation",
				CheckInTime: base,
				Status:      domain.AttendanceCheckedIn,
			}
			require.NoError(t, repo.SaveAttendance(ctx, open))

			found, err := repo.FindOpenAttendance(ctx, testUserID, "evt-1")
			require.NoError(t, err)
			assert.Equal(t, open.ID, found.ID)

			checkout := base.Add(time.Hour)
			found.CheckOutTime = &checkout
			found.Status = domain.AttendanceCheckedOut
			require.NoError(t, repo.SaveAttendance(ctx, found))

			_, err = repo.FindOpenAttendance(ctx, testUserID, "evt-1")
			assert.True(t, errors.Is(err, ErrNotFound))

			history, err := repo.ListAttendance(ctx, testUserID)
			require.NoError(t, err)
			require.Len(t, history, 1)
			assert.Equal(t, domain.AttendanceCheckedOut, history[0].Status)

			assert.True(t, errors.Is(repo.SaveAttendance(ctx, &domain.AttendanceRecord{UserID: testUserID}), ErrInvalidDocument))
		})
	}
}

func TestRepositoryTrainingProgress(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := NewRepository(store, quietLogger())

			_, err := repo.GetProgress(ctx, testUserID, "mod-42")
			assert.True(t, errors.Is(err, ErrNotFound))

			started := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
			progress := &domain.TrainingProgress{
				UserID:     testUserID,
				ModuleID:   "mod-42",
				ModuleName: "Fire Safety",
				Status:     domain.ProgressInProgress,
				StartedAt:  &started,
			}
			require.NoError(t, repo.SaveProgress(ctx, progress))

			got, err := repo.GetProgress(ctx, testUserID, "mod-42")
			require.NoError(t, err)
			assert.Equal(t, progress.ID, got.ID)
			assert.Equal(t, domain.ProgressInProgress, got.Status)

			_, err = repo.GetProgress(ctx, "someone_else", "mod-42")
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestRepositoryParticipation(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := NewRepository(store, quietLogger())
			base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

			for i, activity := range []string{"act-1", "act-2", "act-1"} {
				require.NoError(t, repo.SaveParticipation(ctx, &domain.ParticipationRecord{
					UserID:     testUserID,
					ActivityID: activity,
					Timestamp:  base.Add(time.Duration(i) * 24 * time.Hour),
					Points:     10,
				}))
			}

			all, err := repo.ListParticipation(ctx, testUserID, "")
			require.NoError(t, err)
			assert.Len(t, all, 3)
			assert.True(t, all[0].Timestamp.After(all[1].Timestamp))

			one, err := repo.ListParticipation(ctx, testUserID, "act-1")
			require.NoError(t, err)
			assert.Len(t, one, 2)
		})
	}
}

func TestRepositoryCompetencyRecords(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := NewRepository(store, quietLogger())

			record := &domain.CompetencyRecord{
				UserID:         "student-1",
				CompetencyID:   "cpr",
				AssessorID:     "assessor-1",
				Status:         domain.AssessmentAchieved,
				AssessmentDate: time.Now(),
			}
			require.NoError(t, repo.SaveCompetencyRecord(ctx, record))

			bad := *record
			bad.ID = ""
			bad.Status = "excellent"
			assert.True(t, errors.Is(repo.SaveCompetencyRecord(ctx, &bad), ErrInvalidDocument))

			records, err := repo.ListCompetencyRecords(ctx, "cpr")
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, "assessor-1", records[0].AssessorID)
		})
	}
}

func TestRepositoryCertificates(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := NewRepository(store, quietLogger())

			_, err := repo.DefaultTemplate(ctx)
			assert.True(t, errors.Is(err, ErrNotFound))

			plain := domain.FallbackTemplate()
			plain.ID, plain.Name, plain.IsDefault = "plain", "Plain", false
			plain.CreatedAt = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
			gold := domain.FallbackTemplate()
			gold.ID, gold.Name = "gold", "Gold"
			gold.CreatedAt = plain.CreatedAt.Add(time.Hour)
			require.NoError(t, repo.SaveTemplate(ctx, gold))
			require.NoError(t, repo.SaveTemplate(ctx, plain))

			bad := domain.FallbackTemplate()
			bad.ID, bad.Layout = "bad", "baroque"
			assert.True(t, errors.Is(repo.SaveTemplate(ctx, bad), ErrInvalidDocument))

			templates, err := repo.ListTemplates(ctx)
			require.NoError(t, err)
			require.Len(t, templates, 2)
			assert.Equal(t, "plain", templates[0].ID)

			def, err := repo.DefaultTemplate(ctx)
			require.NoError(t, err)
			assert.Equal(t, "gold", def.ID)
			require.Len(t, def.Fields, 5)

			cert := &domain.Certificate{
				UserID:           testUserID,
				ModuleID:         "mod-42",
				TemplateID:       "gold",
				VerificationCode: "ABC123DEF456",
				IssuedAt:         time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
			}
			require.NoError(t, repo.SaveCertificate(ctx, cert))
			assert.NotEmpty(t, cert.ID)
			assert.True(t, errors.Is(repo.SaveCertificate(ctx, &domain.Certificate{UserID: testUserID}), ErrInvalidDocument))

			got, err := repo.FindCertificate(ctx, testUserID, "mod-42")
			require.NoError(t, err)
			assert.Equal(t, cert.ID, got.ID)

			got, err = repo.FindCertificateByCode(ctx, "ABC123DEF456")
			require.NoError(t, err)
			assert.Equal(t, cert.ID, got.ID)

			_, err = repo.FindCertificate(ctx, testUserID, "mod-7")
			assert.True(t, errors.Is(err, ErrNotFound))
			_, err = repo.FindCertificateByCode(ctx, "")
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestParseDatabaseType(t *testing.T) {
	tests := []struct {
		input    string
		expected DatabaseType
		wantErr  bool
	}{
		{"", DatabaseTypeBadger, false},
		{"BOLT", DatabaseTypeBolt, false},
		{" memory ", DatabaseTypeMemory, false},
		{"postgres", "", true},
	}

	for _, tt := range tests {
		got, err := ParseDatabaseType(tt.input)
		if tt.wantErr {
			assert.Error(t, err, tt.input)
			continue
		}
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.expected, got)
	}
}

func TestNewStoreAddsBoltSuffix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkin")
	store, err := NewStore(path, DatabaseTypeBolt, quietLogger())
	require.NoError(t, err)
	defer store.Close()

	assert.FileExists(t, path+".bolt")
}
