package mapping

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"moorlog/internal/codec"
	"moorlog/internal/config"
	"moorlog/internal/logging"
	"moorlog/internal/store"
)

// unfilteredLimit caps a search without criteria.
const unfilteredLimit = 100

// Mapper persists the three record kinds through a RecordStore. It holds no
// column state: every call introspects the live table.
type Mapper struct {
	connector store.Connector
	records   *store.RecordStore
	metrics   *store.Metrics
	tables    config.TablesConfig
	bootstrap bool
	slowAfter time.Duration
	kinds     map[KindName]*Kind
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithMetrics attaches write, mismatch and migration metrics.
func WithMetrics(m *store.Metrics) Option {
	return func(mp *Mapper) { mp.metrics = m }
}

// WithTables overrides the table of each kind. Empty kind tables keep the
// default; the equipment tables are taken as given.
func WithTables(t config.TablesConfig) Option {
	return func(mp *Mapper) {
		if t.Deployments != "" {
			mp.tables.Deployments = t.Deployments
		}
		if t.Recoveries != "" {
			mp.tables.Recoveries = t.Recoveries
		}
		if t.Repairs != "" {
			mp.tables.Repairs = t.Repairs
		}
		mp.tables.SpoolInventory = t.SpoolInventory
		mp.tables.LegacyDeployments = t.LegacyDeployments
	}
}

// WithBootstrap makes Migrate create missing tables.
func WithBootstrap(enabled bool) Option {
	return func(mp *Mapper) { mp.bootstrap = enabled }
}

// WithSlowMigration makes Migrate warn when a run takes longer than d.
func WithSlowMigration(d time.Duration) Option {
	return func(mp *Mapper) { mp.slowAfter = d }
}

// New creates a Mapper over c.
func New(c store.Connector, opts ...Option) *Mapper {
	m := &Mapper{connector: c, tables: config.DefaultConfig().Tables}
	for _, opt := range opts {
		opt(m)
	}
	m.records = store.NewRecordStore(c, store.WithMetrics(m.metrics))
	m.kinds = map[KindName]*Kind{
		Deployment: DeploymentKind(m.tables.Deployments),
		Recovery:   RecoveryKind(m.tables.Recoveries),
		Repair:     RepairKind(m.tables.Repairs),
	}
	return m
}

// Kind returns the mapping of name.
func (m *Mapper) Kind(name KindName) (*Kind, error) {
	k, ok := m.kinds[name]
	if !ok {
		return nil, fmt.Errorf("unknown record kind %q", name)
	}
	return k, nil
}

// SaveResult describes a committed submission.
type SaveResult struct {
	*store.Result
	Kind       KindName
	Inserted   bool
	Mismatches []SchemaMismatch
}

// Save inserts in as a new record when id is 0 and updates record id
// otherwise. Input is built and validated before the database is touched.
// A write that committed but could not be read back returns both the
// result and a store.ErrUnconfirmed error.
func (m *Mapper) Save(ctx context.Context, kind KindName, id int64, in Input) (*SaveResult, error) {
	k, err := m.Kind(kind)
	if err != nil {
		return nil, err
	}
	log := logging.Get(logging.CategoryMapping).With("kind", string(kind), "table", k.Table)

	rec, err := Build(k, in)
	if err != nil {
		log.Warn("rejected %s input: %v", kind, err)
		return nil, err
	}
	log.Debug("built %s record with %d present values", kind, len(rec.Values))

	p := &plan{rec: rec, table: k.Table}
	var res *store.Result
	if id == 0 {
		res, err = m.records.Insert(ctx, k.Table, p)
	} else {
		res, err = m.records.Update(ctx, k.Table, id, p)
	}
	if res == nil {
		return nil, err
	}

	for _, mm := range p.mismatches {
		m.metrics.SchemaMismatch(k.Table, mm.Field)
	}
	if len(p.mismatches) > 0 {
		log.Warn("%d fields not persisted to %s", len(p.mismatches), k.Table)
	}
	return &SaveResult{Result: res, Kind: kind, Inserted: id == 0, Mismatches: p.mismatches}, err
}

// Outcome is the result handed back to a form layer.
type Outcome struct {
	Success   bool
	ID        int64
	Confirmed map[string]any
	Message   string
	Warnings  []string
}

// Submit runs Save and folds the result into an Outcome. It never returns
// an error; failures carry a message naming the cause.
func (m *Mapper) Submit(ctx context.Context, kind KindName, id int64, in Input) Outcome {
	res, err := m.Save(ctx, kind, id, in)
	if err != nil {
		if res != nil {
			id = res.ID
		}
		return Outcome{ID: id, Message: FailureMessage(id, err)}
	}
	out := Outcome{Success: true, ID: res.ID, Confirmed: res.Confirmed}
	if res.Inserted {
		out.Message = fmt.Sprintf("Record saved with ID %d.", res.ID)
	} else {
		out.Message = fmt.Sprintf("Record %d updated.", res.ID)
	}
	for _, mm := range res.Mismatches {
		out.Warnings = append(out.Warnings, mm.String())
	}
	return out
}

// FailureMessage renders err for the person who submitted the form.
func FailureMessage(id int64, err error) string {
	var (
		ambiguous   *store.AmbiguousUpdateError
		unconfirmed *store.UnconfirmedError
	)
	switch {
	case errors.As(err, &unconfirmed):
		return fmt.Sprintf("Record saved as ID %d but could not be confirmed: %v. Check it before saving again.", unconfirmed.ID, unconfirmed.Err)
	case errors.Is(err, store.ErrNotFound):
		return fmt.Sprintf("Record with ID %d not found in database. Update aborted to prevent data corruption.", id)
	case errors.As(err, &ambiguous):
		return fmt.Sprintf("Update of record %d would affect %d rows. Update aborted to prevent data corruption.", id, ambiguous.Rows)
	case errors.Is(err, store.ErrNothingToWrite):
		return "No matching columns found in database"
	case errors.Is(err, store.ErrTableNotFound):
		return fmt.Sprintf("Database error: %v", err)
	case errors.Is(err, codec.ErrMalformedInput):
		return fmt.Sprintf("Invalid input: %v", err)
	}
	return fmt.Sprintf("Database error: %v", err)
}

// Decoded is a stored record with its documents parsed.
type Decoded struct {
	Kind      KindName
	Row       store.Row
	Documents map[string]any

	// Typed views of the documents that have one. Empty when the kind or
	// table does not carry the document.
	Lost        map[string]EquipmentEntry
	Replacement map[string]ReplacementEntry
	Spools      []NylonSpoolEntry
	Slots       Slots
}

// Load reads record id and leniently decodes every document column.
func (m *Mapper) Load(ctx context.Context, kind KindName, id int64) (*Decoded, error) {
	k, err := m.Kind(kind)
	if err != nil {
		return nil, err
	}
	row, err := m.records.Fetch(ctx, k.Table, id)
	if err != nil {
		return nil, err
	}

	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	live := store.NewColumnSet(cols...)
	raw := func(d Document) any {
		if col, ok := Resolve(d.candidates(), live); ok {
			return row[col]
		}
		return nil
	}

	out := &Decoded{Kind: kind, Row: row, Documents: make(map[string]any, len(k.Documents))}
	for _, d := range k.Documents {
		out.Documents[d.Name] = DecodeDocument(raw(d), d.Shape)
	}
	if d, ok := k.document("lost_equipment"); ok {
		out.Lost = DecodeLostEquipment(raw(d))
	}
	if d, ok := k.document("replacement_equipment"); ok {
		out.Replacement = DecodeReplacementEquipment(raw(d))
	}
	for _, name := range []string{"nylon_spools", "nylon_lines"} {
		if d, ok := k.document(name); ok {
			out.Spools = DecodeSpools(raw(d))
		}
	}
	insts, okI := k.document("subsurface_instruments")
	timing, okT := k.document("instrument_timing")
	if okI && okT {
		out.Slots = DecodeSlots(raw(insts), raw(timing))
	}
	return out, nil
}

// Delete removes record id.
func (m *Mapper) Delete(ctx context.Context, kind KindName, id int64) error {
	k, err := m.Kind(kind)
	if err != nil {
		return err
	}
	return m.records.Delete(ctx, k.Table, id)
}

// Search returns the records matching criteria, keyed by search field name.
// Blank criteria are ignored and criteria whose column is not live are
// skipped with a warning. Without criteria the newest records are returned.
func (m *Mapper) Search(ctx context.Context, kind KindName, criteria map[string]string) ([]store.Row, error) {
	k, err := m.Kind(kind)
	if err != nil {
		return nil, err
	}
	for name := range criteria {
		if !k.hasSearch(name) {
			return nil, fmt.Errorf("%s records cannot be searched by %q", kind, name)
		}
	}
	cols, err := store.Inspect(ctx, m.connector, k.Table)
	if err != nil {
		return nil, err
	}

	var q store.Query
	for _, sf := range k.Search {
		value := strings.TrimSpace(criteria[sf.Name])
		if value == "" {
			continue
		}
		col, ok := Resolve(sf.Columns, cols)
		if !ok {
			logging.Get(logging.CategorySchema).Warn("search on %s skipped: no column in %s", sf.Name, k.Table)
			continue
		}
		q.Where = append(q.Where, store.Predicate{Column: col, Value: value, Like: sf.Like})
	}
	for _, o := range k.Order {
		if col, ok := cols.Lookup(o.Column); ok {
			q.OrderBy = append(q.OrderBy, store.Order{Column: col, Desc: o.Desc})
		}
	}
	if len(q.Where) == 0 {
		q.Limit = unfilteredLimit
	}
	return m.records.Search(ctx, k.Table, q)
}

func (k *Kind) hasSearch(name string) bool {
	for _, sf := range k.Search {
		if sf.Name == name {
			return true
		}
	}
	return false
}

// Sites returns the distinct sites recorded for kind.
func (m *Mapper) Sites(ctx context.Context, kind KindName) ([]string, error) {
	k, err := m.Kind(kind)
	if err != nil {
		return nil, err
	}
	cols, err := store.Inspect(ctx, m.connector, k.Table)
	if err != nil {
		return nil, err
	}
	col, ok := Resolve(k.Sites, cols)
	if !ok {
		return []string{}, nil
	}
	return m.records.Distinct(ctx, k.Table, col)
}

// Report is the resolution of one kind against its live table.
type Report struct {
	Kind       KindName
	Table      string
	Exists     bool
	Columns    int
	Resolved   map[string]string // field -> live column
	Unresolved []string
}

// Inspect resolves every field and document of every kind against the live
// tables. Tables are introspected concurrently, each on its own connection.
func (m *Mapper) Inspect(ctx context.Context) ([]Report, error) {
	reports := make([]Report, len(KindNames))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range KindNames {
		k := m.kinds[name]
		g.Go(func() error {
			r, err := m.inspect(gctx, k)
			if err != nil {
				return err
			}
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func (m *Mapper) inspect(ctx context.Context, k *Kind) (Report, error) {
	r := Report{Kind: k.Name, Table: k.Table, Resolved: make(map[string]string)}
	cols, err := store.Inspect(ctx, m.connector, k.Table)
	if errors.Is(err, store.ErrTableNotFound) {
		return r, nil
	}
	if err != nil {
		return r, err
	}
	r.Exists = true
	r.Columns = cols.Len()

	check := func(name string, candidates []string) {
		if col, ok := Resolve(candidates, cols); ok {
			r.Resolved[name] = col
		} else {
			r.Unresolved = append(r.Unresolved, name)
		}
	}
	for _, f := range k.Fields {
		check(f.Name, f.candidates())
	}
	for _, d := range k.Documents {
		check(d.Name, d.candidates())
	}
	sort.Strings(r.Unresolved)
	return r, nil
}

// Migrate brings every table up to the mapping catalog.
func (m *Mapper) Migrate(ctx context.Context) (*store.MigrationResult, error) {
	var (
		migrations []store.Migration
		copies     []store.ColumnCopy
		tables     []string
	)
	for _, name := range KindNames {
		k := m.kinds[name]
		mig, cp := k.Catalog()
		migrations = append(migrations, mig...)
		copies = append(copies, cp...)
		tables = append(tables, k.Table)
	}

	migrator := store.NewMigrator(m.connector, migrations, copies).
		WithMetrics(m.metrics).
		WithSlowThreshold(m.slowAfter)
	if m.bootstrap {
		migrator = migrator.WithBootstrap(tables...)
	}
	return migrator.Run(ctx)
}
