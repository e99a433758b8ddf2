package mapping

import (
	"github.com/google/go-cmp/cmp"

	"moorlog/internal/store"
)

func (s *MapperSuite) TestFindSpoolAcrossLayouts() {
	_, err := s.mapper.Save(s.ctx, Deployment, 0, Input{
		"site":                  "0N165E",
		"mooring_id":            "PI-123",
		"cruise":                "RB-24-01",
		"dep_date":              "2024-05-01",
		"deployment_start_time": "08:15",
		"spool_1_sn":            "N-101",
		"spool_1_length":        "2000",
		"spool_2_sn":            "N-555",
	})
	s.Require().NoError(err)

	execSQL(s.T(), s.src,
		`INSERT INTO deployments_normalized (site, mooringid, depth, deployment_info, nylon_spools)
			VALUES ('2S140W', 'PI-100', '4500', '{"dep_date":"2022-03-01"}', '{"spool_3":{"sn":"n-101","length":1500}}')`,
		`CREATE TABLE deployments (mooringid TEXT, site TEXT, dep_date TEXT, corr_depth TEXT,
			nylon1sn TEXT, nylon1ln TEXT, nylon2sn TEXT, nylon2ln TEXT)`,
		`INSERT INTO deployments VALUES ('PI-090', '8N95W', '2020-01-10', '4100', 'X', '100', 'N-101', '750')`,
		`INSERT INTO deployments VALUES ('PI-100', '2S140W', '2022-03-01', '4500', 'N-101', '1500', NULL, NULL)`,
	)

	uses, err := s.mapper.FindSpool(s.ctx, " N-101 ")
	s.Require().NoError(err)
	want := []SpoolUse{
		{ID: 1, MooringID: "PI-123", Site: "0N165E", DepDate: "2024-05-01", Position: "Spool #1", Length: 2000.0},
		{ID: 2, MooringID: "PI-100", Site: "2S140W", DepDate: "2022-03-01", Depth: "4500", Position: "Spool #3", Length: 1500.0},
		{MooringID: "PI-090", Site: "8N95W", DepDate: "2020-01-10", Depth: "4100", Position: "Spool #2", Length: 750.0},
	}
	if diff := cmp.Diff(want, uses); diff != "" {
		s.T().Errorf("FindSpool mismatch (-want +got):\n%s", diff)
	}

	none, err := s.mapper.FindSpool(s.ctx, "N-999")
	s.Require().NoError(err)
	s.Empty(none)

	blank, err := s.mapper.FindSpool(s.ctx, "  ")
	s.Require().NoError(err)
	s.Empty(blank)
}

func (s *MapperSuite) TestFindSpoolWithoutLegacyTable() {
	_, err := s.mapper.Save(s.ctx, Deployment, 0, Input{
		"site":                  "0N165E",
		"mooring_id":            "PI-123",
		"cruise":                "RB-24-01",
		"dep_date":              "2024-05-01",
		"deployment_start_time": "08:15",
		"spool_4_sn":            101,
	})
	s.Require().NoError(err)

	uses, err := s.mapper.FindSpool(s.ctx, "101")
	s.Require().NoError(err)
	s.Require().Len(uses, 1)
	s.Equal("Spool #4", uses[0].Position)
	s.Nil(uses[0].Length)
}

func (s *MapperSuite) TestFindRelease() {
	none, err := s.mapper.FindRelease(s.ctx, "33412")
	s.Require().NoError(err)
	s.Empty(none, "no acoustic_releases column yet")

	execSQL(s.T(), s.src,
		`ALTER TABLE deployments_normalized ADD COLUMN acoustic_releases TEXT`,
		`INSERT INTO deployments_normalized (site, mooringid, deployment_info, acoustic_releases)
			VALUES ('0N165E', 'PI-123', '{"dep_date":"2023-06-01"}',
			'{"release_1":{"type":"EdgeTech 8242","sn":33412,"int_freq":"9.0","reply_freq":"12.0"},"release_2":{"type":"ORE","sn":"R-77"}}')`,
		`INSERT INTO deployments_normalized (site, mooringid, deployment_info, acoustic_releases)
			VALUES ('2S140W', 'PI-100', '{"dep_date":"2024-01-01"}',
			'{"release_1":{"type":"EdgeTech 8242","sn":"33412","int_freq":9.5},"release_2":"unreadable"}')`,
		`INSERT INTO deployments_normalized (site, mooringid, acoustic_releases) VALUES ('8N95W', 'PI-090', '{bad')`,
	)

	uses, err := s.mapper.FindRelease(s.ctx, "33412")
	s.Require().NoError(err)
	s.Require().Len(uses, 2)
	s.Equal("PI-100", uses[0].MooringID)
	s.Equal("2024-01-01", uses[0].DepDate)
	s.Equal("9.5", uses[0].IntFreq)
	s.Equal("release 1", uses[0].Position)
	s.Equal(ReleaseUse{
		ID: 1, MooringID: "PI-123", Site: "0N165E", DepDate: "2023-06-01",
		ReleaseInfo: ReleaseInfo{
			Position: "release 1", Serial: "33412", Type: "EdgeTech 8242",
			IntFreq: "9.0", ReplyFreq: "12.0",
		},
	}, uses[1])

	found, err := s.mapper.SearchReleases(s.ctx, ReleaseQuery{Type: "edgetech"})
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal("9.5", found[0].IntFreq)

	found, err = s.mapper.SearchReleases(s.ctx, ReleaseQuery{ReplyFreq: "12"})
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal("33412", found[0].Serial)

	serials, err := s.mapper.ReleaseSerials(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"33412", "R-77"}, serials)
}

func (s *MapperSuite) TestSpoolInventory() {
	_, err := s.mapper.SpoolSerials(s.ctx)
	s.ErrorIs(err, store.ErrTableNotFound)

	execSQL(s.T(), s.src,
		`CREATE TABLE spool_inventory (serial_number TEXT, length REAL, status TEXT, notes TEXT, year TEXT, yes_flag TEXT)`,
		`INSERT INTO spool_inventory VALUES ('N-102', 500, 'Retired', 'kinked', '2019', NULL)`,
		`INSERT INTO spool_inventory VALUES ('N-101', 2000, 'Active', 'new line', '2023', 'Y')`,
		`INSERT INTO spool_inventory VALUES ('X-9', 1500, 'Active', NULL, '2023', 'Y')`,
	)

	serials, err := s.mapper.SpoolSerials(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"N-101", "N-102", "X-9"}, serials)

	spools, err := s.mapper.SearchSpools(s.ctx, SpoolQuery{Serial: "n-10"})
	s.Require().NoError(err)
	s.Require().Len(spools, 2)
	s.Equal(InventorySpool{Serial: "N-101", Length: 2000.0, Status: "Active", Notes: "new line", Year: "2023", EV50: "Y"}, spools[0])
	s.Equal("", spools[1].EV50)

	minLen := 1000.0
	spools, err = s.mapper.SearchSpools(s.ctx, SpoolQuery{Serial: "n-10", MinLength: &minLen})
	s.Require().NoError(err)
	s.Require().Len(spools, 1)
	s.Equal("N-101", spools[0].Serial)

	maxLen := 1800.0
	spools, err = s.mapper.SearchSpools(s.ctx, SpoolQuery{Status: "Active", Year: "2023", MaxLength: &maxLen})
	s.Require().NoError(err)
	s.Require().Len(spools, 1)
	s.Equal("X-9", spools[0].Serial)
}

func (s *MapperSuite) TestCruises() {
	execSQL(s.T(), s.src,
		`INSERT INTO recoveries_normalized (site, mooringid, cruise) VALUES ('0N165E', 'PI-123', 'RB-24-01')`,
		`INSERT INTO recoveries_normalized (site, mooringid, cruise) VALUES ('2S140W', 'PI-100', 'RB-23-02')`,
		`INSERT INTO recoveries_normalized (site, mooringid, cruise) VALUES ('8N95W', 'PI-090', 'RB-24-01')`,
		`INSERT INTO recoveries_normalized (site, mooringid, cruise) VALUES ('8N95W', 'PI-091', '')`,
	)
	cruises, err := s.mapper.Cruises(s.ctx, Recovery)
	s.Require().NoError(err)
	s.Equal([]string{"RB-23-02", "RB-24-01"}, cruises)

	cruises, err = s.mapper.Cruises(s.ctx, Repair)
	s.Require().NoError(err)
	s.Equal([]string{}, cruises, "repair table has no cruise column")
}
