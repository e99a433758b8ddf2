package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
)

type RecordStoreSuite struct {
	suite.Suite
	ctx     context.Context
	src     *Source
	conn    *countingConnector
	metrics *Metrics
	store   *RecordStore
}

func (s *RecordStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.src = newTestSource(s.T())
	s.conn = &countingConnector{inner: s.src}
	s.metrics = NewMetrics(prometheus.NewRegistry())
	s.store = NewRecordStore(s.conn, WithMetrics(s.metrics))
	execSQL(s.T(), s.src, repairDDL)
}

func stage(assignments ...Assignment) Plan {
	return PlanFunc(func(ColumnSet) (Staged, error) {
		return Staged{
			Assignments: assignments,
			Confirm: []Confirm{
				{Label: "date", Column: "repair_date"},
				{Label: "mooring", Column: "mooring_id"},
			},
		}, nil
	})
}

func (s *RecordStoreSuite) insertRepair(site, mooring string) int64 {
	res, err := s.store.Insert(s.ctx, "repair_normalized", stage(
		Assignment{Column: "site", Value: site},
		Assignment{Column: "mooring_id", Value: mooring},
		Assignment{Column: "repair_date", Value: "2024-05-01"},
	))
	s.Require().NoError(err)
	return res.ID
}

func (s *RecordStoreSuite) TestInsertReturnsIDAndConfirmation() {
	res, err := s.store.Insert(s.ctx, "repair_normalized", stage(
		Assignment{Column: "site", Value: "0N165E"},
		Assignment{Column: "mooring_id", Value: "RA092B"},
		Assignment{Column: "repair_date", Value: "2024-05-01"},
	))
	s.Require().NoError(err)

	s.Equal(int64(1), res.ID)
	s.NotEmpty(res.OperationID)
	s.Equal([]string{"site", "mooring_id", "repair_date"}, res.Columns)
	s.Equal(map[string]any{"date": "2024-05-01", "mooring": "RA092B"}, res.Confirmed)

	rows := snapshot(s.T(), s.src, "repair_normalized")
	s.Require().Len(rows, 1)
	s.NotNil(rows[0]["created_at"])
	s.NotNil(rows[0]["updated_at"])
	s.Equal(1.0, testutil.ToFloat64(s.metrics.writes.WithLabelValues("repair_normalized", "insert", OutcomeOK)))
}

func (s *RecordStoreSuite) TestUpdateConfirmsOnFreshConnection() {
	id := s.insertRepair("0N165E", "RA092B")
	before := s.conn.count()

	res, err := s.store.Update(s.ctx, "repair_normalized", id, stage(
		Assignment{Column: "mooring_id", Value: "RA092C"},
	))
	s.Require().NoError(err)

	s.Equal(id, res.ID)
	s.Equal("RA092C", res.Confirmed["mooring"])
	s.Equal("2024-05-01", res.Confirmed["date"])
	// One connection for the write, one for the read-back.
	s.Equal(2, s.conn.count()-before)
}

func (s *RecordStoreSuite) TestUpdateMissingIDLeavesTableUntouched() {
	s.insertRepair("0N165E", "RA092B")
	s.insertRepair("2S140W", "PI001A")
	before := snapshot(s.T(), s.src, "repair_normalized")

	_, err := s.store.Update(s.ctx, "repair_normalized", 99, stage(
		Assignment{Column: "site", Value: "changed"},
	))
	s.Require().Error(err)
	s.True(errors.Is(err, ErrNotFound))

	var nf *NotFoundError
	s.Require().True(errors.As(err, &nf))
	s.Equal(int64(99), nf.ID)
	s.Contains(err.Error(), "99")

	after := snapshot(s.T(), s.src, "repair_normalized")
	if diff := cmp.Diff(before, after); diff != "" {
		s.T().Errorf("table changed after failed update (-before +after):\n%s", diff)
	}
	s.Equal(1.0, testutil.ToFloat64(s.metrics.writes.WithLabelValues("repair_normalized", "update", OutcomeNotFound)))
}

func (s *RecordStoreSuite) TestUpdateAffectingManyRowsRollsBack() {
	execSQL(s.T(), s.src,
		"CREATE TABLE dupes (id INTEGER, site TEXT)",
		"INSERT INTO dupes (id, site) VALUES (7, 'a'), (7, 'b')",
	)
	before := snapshot(s.T(), s.src, "dupes")

	_, err := s.store.Update(s.ctx, "dupes", 7, PlanFunc(func(ColumnSet) (Staged, error) {
		return Staged{Assignments: []Assignment{{Column: "site", Value: "c"}}}, nil
	}))
	s.Require().Error(err)
	s.True(errors.Is(err, ErrAmbiguousUpdate))

	var amb *AmbiguousUpdateError
	s.Require().True(errors.As(err, &amb))
	s.Equal(int64(2), amb.Rows)

	after := snapshot(s.T(), s.src, "dupes")
	s.Empty(cmp.Diff(before, after))
}

func (s *RecordStoreSuite) TestEmptyWriteSet() {
	id := s.insertRepair("0N165E", "RA092B")

	_, err := s.store.Update(s.ctx, "repair_normalized", id, stage())
	s.ErrorIs(err, ErrNothingToWrite)

	_, err = s.store.Insert(s.ctx, "repair_normalized", stage())
	s.ErrorIs(err, ErrNothingToWrite)
	s.Len(snapshot(s.T(), s.src, "repair_normalized"), 1)
}

func (s *RecordStoreSuite) TestStagedColumnMustBeLive() {
	_, err := s.store.Insert(s.ctx, "repair_normalized", stage(
		Assignment{Column: "NewTubeSN", Value: "67890"},
	))
	s.Require().Error(err)
	s.Contains(err.Error(), "NewTubeSN")

	_, err = s.store.Insert(s.ctx, "repair_normalized", stage(
		Assignment{Column: "site", Value: "a"},
		Assignment{Column: "site", Value: "b"},
	))
	s.Require().Error(err)
	s.Empty(snapshot(s.T(), s.src, "repair_normalized"))
}

func (s *RecordStoreSuite) TestPlanErrorAbortsBeforeWrite() {
	id := s.insertRepair("0N165E", "RA092B")
	before := snapshot(s.T(), s.src, "repair_normalized")
	boom := errors.New("bad coordinate")

	_, err := s.store.Update(s.ctx, "repair_normalized", id, PlanFunc(func(ColumnSet) (Staged, error) {
		return Staged{}, boom
	}))
	s.ErrorIs(err, boom)
	s.Empty(cmp.Diff(before, snapshot(s.T(), s.src, "repair_normalized")))
}

func (s *RecordStoreSuite) TestPlanSeesLiveColumns() {
	var seen ColumnSet
	_, err := s.store.Insert(s.ctx, "repair_normalized", PlanFunc(func(cols ColumnSet) (Staged, error) {
		seen = cols
		return Staged{Assignments: []Assignment{{Column: "site", Value: "x"}}}, nil
	}))
	s.Require().NoError(err)
	s.True(seen.Has("lost_equipment"))
	s.False(seen.Has("NewTubeSN"))
}

func (s *RecordStoreSuite) TestMissingTable() {
	_, err := s.store.Insert(s.ctx, "nope", stage(Assignment{Column: "site", Value: "x"}))
	s.ErrorIs(err, ErrTableNotFound)
	s.Equal(OutcomeNoTable, Outcome(err))
}

func (s *RecordStoreSuite) TestDelete() {
	id := s.insertRepair("0N165E", "RA092B")
	keep := s.insertRepair("2S140W", "PI001A")

	s.Require().NoError(s.store.Delete(s.ctx, "repair_normalized", id))
	err := s.store.Delete(s.ctx, "repair_normalized", id)
	s.ErrorIs(err, ErrNotFound)

	rows := snapshot(s.T(), s.src, "repair_normalized")
	s.Require().Len(rows, 1)
	s.Equal(keep, rows[0].ID())
}

func (s *RecordStoreSuite) TestFetchSearchDistinct() {
	a := s.insertRepair("0N165E", "RA092B")
	s.insertRepair("0N165E", "RA093A")
	s.insertRepair("2S140W", "PI001A")

	row, err := s.store.Fetch(s.ctx, "repair_normalized", a)
	s.Require().NoError(err)
	s.Equal("RA092B", row.String("mooring_id"))
	s.Equal(a, row.ID())

	_, err = s.store.Fetch(s.ctx, "repair_normalized", 42)
	s.ErrorIs(err, ErrNotFound)

	rows, err := s.store.Search(s.ctx, "repair_normalized", Query{
		Where:   []Predicate{{Column: "site", Value: "0N165E"}, {Column: "mooring_id", Value: "ra09", Like: true}},
		OrderBy: []Order{{Column: "id", Desc: true}},
	})
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Equal("RA093A", rows[0].String("mooring_id"))

	_, err = s.store.Search(s.ctx, "repair_normalized", Query{Where: []Predicate{{Column: "ghost", Value: 1}}})
	s.Error(err)

	sites, err := s.store.Distinct(s.ctx, "repair_normalized", "site")
	s.Require().NoError(err)
	s.Equal([]string{"0N165E", "2S140W"}, sites)
}

// The read-back connection is the second one an Insert or Update opens.
func (s *RecordStoreSuite) TestInsertCommittedButUnconfirmed() {
	flaky := &failingConnector{countingConnector: countingConnector{inner: s.src}, failOn: 2}
	st := NewRecordStore(flaky, WithMetrics(s.metrics))

	res, err := st.Insert(s.ctx, "repair_normalized", stage(
		Assignment{Column: "site", Value: "0N165E"},
		Assignment{Column: "mooring_id", Value: "RA092B"},
		Assignment{Column: "repair_date", Value: "2024-05-01"},
	))
	s.Require().ErrorIs(err, ErrUnconfirmed)
	s.Require().NotNil(res)
	s.Equal(int64(1), res.ID)
	s.Nil(res.Confirmed)

	var unconfirmed *UnconfirmedError
	s.Require().True(errors.As(err, &unconfirmed))
	s.Equal(int64(1), unconfirmed.ID)
	s.Contains(err.Error(), "database is locked")

	rows := snapshot(s.T(), s.src, "repair_normalized")
	s.Require().Len(rows, 1)
	s.Equal("RA092B", rows[0].String("mooring_id"))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.writes.WithLabelValues("repair_normalized", "insert", OutcomeUnconfirmed)))
}

func (s *RecordStoreSuite) TestUpdateCommittedButUnconfirmed() {
	id := s.insertRepair("0N165E", "RA092B")
	flaky := &failingConnector{countingConnector: countingConnector{inner: s.src}, failOn: 2}
	st := NewRecordStore(flaky)

	res, err := st.Update(s.ctx, "repair_normalized", id, stage(
		Assignment{Column: "mooring_id", Value: "RA092C"},
	))
	s.Require().ErrorIs(err, ErrUnconfirmed)
	s.Require().NotNil(res)
	s.Equal(id, res.ID)
	s.Equal(OutcomeUnconfirmed, Outcome(err))

	rows := snapshot(s.T(), s.src, "repair_normalized")
	s.Require().Len(rows, 1)
	s.Equal("RA092C", rows[0].String("mooring_id"))
}

func TestRecordStoreSuite(t *testing.T) {
	suite.Run(t, new(RecordStoreSuite))
}
