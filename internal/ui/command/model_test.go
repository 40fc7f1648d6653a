package command

import "testing"

func TestParse(t *testing.T) {
	cases := []struct {
		in      string
		want    CommandMsg
		wantErr bool
	}{
		{in: "status away out to lunch", want: CommandMsg{Name: CmdStatus, StatusID: "away", Message: "out to lunch"}},
		{in: "STATUS Available", want: CommandMsg{Name: CmdStatus, StatusID: "available"}},
		{in: "away  in a meeting ", want: CommandMsg{Name: CmdStatus, StatusID: "away", Message: "in a meeting"}},
		{in: "back", want: CommandMsg{Name: CmdStatus, StatusID: "available"}},
		{in: "clear", want: CommandMsg{Name: CmdClear}},
		{in: "q", want: CommandMsg{Name: CmdQuit}},
		{in: "status busy", wantErr: true},
		{in: "frobnicate", wantErr: true},
		{in: "   ", wantErr: true},
	}

	for _, tc := range cases {
		got, err := Parse(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("Parse(%q): expected error, got %+v", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Parse(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}
