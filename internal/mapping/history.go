package mapping

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"moorlog/internal/codec"
	"moorlog/internal/logging"
	"moorlog/internal/store"
)

// SpoolUse is one deployment that carried a nylon spool.
type SpoolUse struct {
	ID        int64 // 0 for rows of the legacy flat table
	MooringID string
	Site      string
	DepDate   string
	Depth     string
	Position  string
	Length    any
}

// ReleaseInfo is one acoustic release as recorded on a deployment.
type ReleaseInfo struct {
	Position  string
	Serial    string
	Type      string
	IntFreq   string
	ReplyFreq string
	Release   string
	Disable   string
	Enable    string
}

// ReleaseUse is one deployment that carried an acoustic release.
type ReleaseUse struct {
	ID        int64
	MooringID string
	Site      string
	DepDate   string
	Depth     string
	ReleaseInfo
}

// DecodeReleases reads acoustic_releases, keyed release_1 and release_2.
func DecodeReleases(raw any) map[string]ReleaseInfo {
	m, ok := objects(raw)
	if !ok {
		return map[string]ReleaseInfo{}
	}
	out := make(map[string]ReleaseInfo, len(m))
	for k, obj := range m {
		out[k] = ReleaseInfo{
			Position:  strings.ReplaceAll(k, "_", " "),
			Serial:    codec.NormalizeSerial(obj["sn"]),
			Type:      codec.Text(obj["type"]),
			IntFreq:   codec.Text(obj["int_freq"]),
			ReplyFreq: codec.Text(obj["reply_freq"]),
			Release:   codec.Text(obj["release"]),
			Disable:   codec.Text(obj["disable"]),
			Enable:    codec.Text(obj["enable"]),
		}
	}
	return out
}

func sameSerial(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// deploymentScan is every deployment row with the live columns of the
// fields the history queries read.
type deploymentScan struct {
	rows    []store.Row
	mooring string
	site    string
	depth   string
	depDate string
	info    string
}

func (d *deploymentScan) use(row store.Row) (int64, string, string, string, string) {
	date := ""
	if d.info != "" {
		if info, ok := DecodeDocument(row[d.info], ObjectShape).(map[string]any); ok {
			date = codec.Text(info["dep_date"])
		}
	}
	if date == "" && d.depDate != "" {
		date = row.String(d.depDate)
	}
	return row.ID(), row.String(d.mooring), row.String(d.site), date, row.String(d.depth)
}

// scanDeployments reads every deployment whose document column is live. A
// table without the column yields no rows.
func (m *Mapper) scanDeployments(ctx context.Context, document string) (*deploymentScan, string, error) {
	k, err := m.Kind(Deployment)
	if err != nil {
		return nil, "", err
	}
	doc, ok := k.document(document)
	if !ok {
		return nil, "", fmt.Errorf("deployments have no %s document", document)
	}
	cols, err := store.Inspect(ctx, m.connector, k.Table)
	if err != nil {
		return nil, "", err
	}
	docCol, ok := Resolve(doc.candidates(), cols)
	if !ok {
		logging.Get(logging.CategorySchema).Debug("%s has no %s column", k.Table, document)
		return &deploymentScan{}, "", nil
	}

	scan := &deploymentScan{}
	for _, target := range []struct {
		dst   *string
		field string
	}{
		{&scan.mooring, "mooringid"},
		{&scan.site, "site"},
		{&scan.depth, "depth"},
		{&scan.depDate, "dep_date"},
	} {
		if f, ok := k.field(target.field); ok {
			*target.dst, _ = Resolve(f.candidates(), cols)
		}
	}
	if info, ok := k.document("deployment_info"); ok {
		scan.info, _ = Resolve(info.candidates(), cols)
	}

	var q store.Query
	for _, o := range k.Order {
		if col, ok := cols.Lookup(o.Column); ok {
			q.OrderBy = append(q.OrderBy, store.Order{Column: col, Desc: o.Desc})
		}
	}
	scan.rows, err = m.records.Search(ctx, k.Table, q)
	if err != nil {
		return nil, "", err
	}
	return scan, docCol, nil
}

// FindSpool lists the deployments that carried the spool with serial, most
// recent first. Rows of the legacy flat deployments table are included
// unless a normalized row already covers the same mooring and date.
func (m *Mapper) FindSpool(ctx context.Context, serial string) ([]SpoolUse, error) {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return []SpoolUse{}, nil
	}
	scan, col, err := m.scanDeployments(ctx, "nylon_spools")
	if err != nil {
		return nil, err
	}

	out := []SpoolUse{}
	for _, row := range scan.rows {
		for _, sp := range DecodeSpools(row[col]) {
			if sp.SN == nil || !sameSerial(*sp.SN, serial) {
				continue
			}
			id, mooring, site, date, depth := scan.use(row)
			pos := ""
			if sp.Spool != nil {
				pos = "Spool #" + *sp.Spool
			}
			out = append(out, SpoolUse{
				ID: id, MooringID: mooring, Site: site, DepDate: date, Depth: depth,
				Position: pos, Length: sp.Length,
			})
		}
	}

	legacy, err := m.legacySpoolUses(ctx, serial)
	if err != nil {
		return nil, err
	}
	for _, u := range legacy {
		dup := false
		for _, have := range out {
			if have.MooringID == u.MooringID && have.DepDate == u.DepDate {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, u)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].DepDate > out[j].DepDate })
	return out, nil
}

// legacySpoolUses searches the flat deployments table, where spool n is
// stored in nylon<n>sn and nylon<n>ln. A missing table yields nothing.
func (m *Mapper) legacySpoolUses(ctx context.Context, serial string) ([]SpoolUse, error) {
	table := m.tables.LegacyDeployments
	if table == "" {
		return nil, nil
	}
	cols, err := store.Inspect(ctx, m.connector, table)
	if errors.Is(err, store.ErrTableNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rows, err := m.records.Search(ctx, table, store.Query{})
	if err != nil {
		return nil, err
	}

	mooring, _ := Resolve([]string{"mooringid", "mooring_id"}, cols)
	site, _ := cols.Lookup("site")
	date, _ := Resolve([]string{"dep_date", "deployment_date"}, cols)
	depth, _ := Resolve([]string{"corr_depth", "depth"}, cols)

	var out []SpoolUse
	for _, row := range rows {
		for n := 1; n <= SpoolCount; n++ {
			snCol, ok := cols.Lookup("nylon" + strconv.Itoa(n) + "sn")
			if !ok || !sameSerial(codec.NormalizeSerial(row[snCol]), serial) {
				continue
			}
			u := SpoolUse{
				MooringID: row.String(mooring),
				Site:      row.String(site),
				DepDate:   row.String(date),
				Depth:     row.String(depth),
				Position:  "Spool #" + strconv.Itoa(n),
			}
			if lnCol, ok := cols.Lookup("nylon" + strconv.Itoa(n) + "ln"); ok && codec.Present(row[lnCol]) {
				u.Length = codec.CoerceNumber(row[lnCol])
			}
			out = append(out, u)
			break
		}
	}
	return out, nil
}

// FindRelease lists the deployments that carried the acoustic release with
// serial, most recent first.
func (m *Mapper) FindRelease(ctx context.Context, serial string) ([]ReleaseUse, error) {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return []ReleaseUse{}, nil
	}
	scan, col, err := m.scanDeployments(ctx, "acoustic_releases")
	if err != nil {
		return nil, err
	}

	out := []ReleaseUse{}
	for _, row := range scan.rows {
		for _, r := range sortedReleases(row[col]) {
			if !sameSerial(r.Serial, serial) {
				continue
			}
			id, mooring, site, date, depth := scan.use(row)
			out = append(out, ReleaseUse{
				ID: id, MooringID: mooring, Site: site, DepDate: date, Depth: depth,
				ReleaseInfo: r,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DepDate > out[j].DepDate })
	return out, nil
}

func sortedReleases(raw any) []ReleaseInfo {
	m := DecodeReleases(raw)
	out := make([]ReleaseInfo, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// ReleaseQuery filters SearchReleases. Serial and Type match a
// case-insensitive substring, the frequencies a plain substring.
type ReleaseQuery struct {
	Serial    string
	Type      string
	IntFreq   string
	ReplyFreq string
}

func (q ReleaseQuery) matches(r ReleaseInfo) bool {
	contains := func(s, sub string) bool {
		return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
	}
	return contains(r.Serial, q.Serial) &&
		contains(r.Type, q.Type) &&
		strings.Contains(r.IntFreq, q.IntFreq) &&
		strings.Contains(r.ReplyFreq, q.ReplyFreq)
}

// SearchReleases returns each matching release once, as first seen in the
// newest deployment that carried it.
func (m *Mapper) SearchReleases(ctx context.Context, q ReleaseQuery) ([]ReleaseInfo, error) {
	scan, col, err := m.scanDeployments(ctx, "acoustic_releases")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	out := []ReleaseInfo{}
	for _, row := range scan.rows {
		for _, r := range sortedReleases(row[col]) {
			if !q.matches(r) {
				continue
			}
			key := strings.ToUpper(r.Serial)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, r)
		}
	}
	return out, nil
}

// ReleaseSerials returns the sorted serials of every recorded release.
func (m *Mapper) ReleaseSerials(ctx context.Context) ([]string, error) {
	releases, err := m.SearchReleases(ctx, ReleaseQuery{})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(releases))
	for _, r := range releases {
		if r.Serial != "" {
			out = append(out, r.Serial)
		}
	}
	sort.Strings(out)
	return out, nil
}

// InventorySpool is one row of the spool inventory.
type InventorySpool struct {
	Serial string
	Length any
	Status string
	Notes  string
	Year   string
	EV50   string
}

// SpoolQuery filters SearchSpools. Serial and Notes match a substring;
// Status, Year and EV50 match exactly. Lengths bound inclusively.
type SpoolQuery struct {
	Serial    string
	Notes     string
	Status    string
	Year      string
	EV50      string
	MinLength *float64
	MaxLength *float64
}

func (m *Mapper) inventory(ctx context.Context) (string, store.ColumnSet, error) {
	table := m.tables.SpoolInventory
	if table == "" {
		return "", store.ColumnSet{}, fmt.Errorf("no spool inventory table configured")
	}
	cols, err := store.Inspect(ctx, m.connector, table)
	if err != nil {
		return "", store.ColumnSet{}, err
	}
	return table, cols, nil
}

// SearchSpools searches the spool inventory, ordered by serial.
func (m *Mapper) SearchSpools(ctx context.Context, q SpoolQuery) ([]InventorySpool, error) {
	table, cols, err := m.inventory(ctx)
	if err != nil {
		return nil, err
	}

	var sq store.Query
	for _, c := range []struct {
		column, value string
		like          bool
	}{
		{"serial_number", q.Serial, true},
		{"notes", q.Notes, true},
		{"status", q.Status, false},
		{"year", q.Year, false},
		{"yes_flag", q.EV50, false},
	} {
		value := strings.TrimSpace(c.value)
		if value == "" {
			continue
		}
		col, ok := cols.Lookup(c.column)
		if !ok {
			return nil, fmt.Errorf("%s has no %s column", table, c.column)
		}
		sq.Where = append(sq.Where, store.Predicate{Column: col, Value: value, Like: c.like})
	}
	if col, ok := cols.Lookup("serial_number"); ok {
		sq.OrderBy = []store.Order{{Column: col}}
	}
	rows, err := m.records.Search(ctx, table, sq)
	if err != nil {
		return nil, err
	}

	out := []InventorySpool{}
	for _, row := range rows {
		length, hasLength := codec.ParseNumber(row["length"])
		if q.MinLength != nil && (!hasLength || length < *q.MinLength) {
			continue
		}
		if q.MaxLength != nil && (!hasLength || length > *q.MaxLength) {
			continue
		}
		sp := InventorySpool{
			Serial: codec.NormalizeSerial(row["serial_number"]),
			Status: row.String("status"),
			Notes:  row.String("notes"),
			Year:   codec.Text(row["year"]),
			EV50:   row.String("yes_flag"),
		}
		if codec.Present(row["length"]) {
			sp.Length = codec.CoerceNumber(row["length"])
		}
		out = append(out, sp)
	}
	return out, nil
}

// SpoolSerials returns the distinct serials in the spool inventory.
func (m *Mapper) SpoolSerials(ctx context.Context) ([]string, error) {
	table, cols, err := m.inventory(ctx)
	if err != nil {
		return nil, err
	}
	col, ok := cols.Lookup("serial_number")
	if !ok {
		return []string{}, nil
	}
	return m.records.Distinct(ctx, table, col)
}

// Cruises returns the distinct cruises recorded for kind.
func (m *Mapper) Cruises(ctx context.Context, kind KindName) ([]string, error) {
	k, err := m.Kind(kind)
	if err != nil {
		return nil, err
	}
	candidates := []string{"cruise"}
	if f, ok := k.field("cruise"); ok {
		candidates = f.candidates()
	}
	cols, err := store.Inspect(ctx, m.connector, k.Table)
	if err != nil {
		return nil, err
	}
	col, ok := Resolve(candidates, cols)
	if !ok {
		return []string{}, nil
	}
	return m.records.Distinct(ctx, k.Table, col)
}
