package version

import (
	"strings"
	"testing"
)

func TestGettersMatchInfo(t *testing.T) {
	v, c, d := Info()

	cases := []struct {
		name string
		got  string
		want string
	}{
		{name: "version", got: GetVersion(), want: v},
		{name: "commit", got: GetCommit(), want: c},
		{name: "date", got: GetDate(), want: d},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got == "" {
				t.Fatalf("%s should not be empty", tc.name)
			}
			if tc.got != tc.want {
				t.Fatalf("%s getter = %q, Info = %q", tc.name, tc.got, tc.want)
			}
		})
	}
}

func TestString(t *testing.T) {
	s := String()
	for _, part := range []string{"version=" + GetVersion(), "commit=" + GetCommit(), "date=" + GetDate()} {
		if !strings.Contains(s, part) {
			t.Errorf("String() = %q, missing %q", s, part)
		}
	}
}
