package cache

import "testing"

func TestSearchAffectedBy(t *testing.T) {
	t.Parallel()

	cases := []struct {
		jql  string
		keys []string
		want bool
	}{
		{"project = PROJ", nil, true},
		{"project = proj AND status = Done", nil, true},
		{"key = PROJ-1", nil, true},
		{"assignee = currentUser()", nil, true},
		{"", nil, true},
		{"project = OTHER", []string{"PROJ-1"}, true},
		{"project = OTHER", []string{"PROJ-2"}, false},
		{"project = OTHER AND status = Done ORDER BY created DESC", nil, false},
		{`project = "OTHER"`, nil, false},
		{"project in (OTHER, THIRD)", nil, false},
		{"project in (OTHER, PROJ)", nil, true},
		{"project = OTHER OR assignee = currentUser()", nil, true},
		{"project != OTHER", nil, true},
		{"project not in (OTHER)", nil, true},
		{"project in projectsLeadByUser()", nil, true},
		{"project = 10000", nil, true},
		{"projectType = software", nil, true},
	}

	for _, tc := range cases {
		if got := SearchAffectedBy("PROJ-1", tc.jql, tc.keys); got != tc.want {
			t.Errorf("SearchAffectedBy(PROJ-1, %q, %v) = %v, want %v", tc.jql, tc.keys, got, tc.want)
		}
	}

	if !SearchAffectedBy("malformed", "project = OTHER", nil) {
		t.Errorf("malformed keys must invalidate conservatively")
	}
}
