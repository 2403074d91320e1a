package pprof

// StringTable interns strings. The empty string is always at index 0 and
// the well-known strings follow it, so their ids are stable across runs.
type StringTable struct {
	strings []string
	ids     map[string]int64
}

func NewStringTable() *StringTable {
	st := &StringTable{
		strings: []string{""},
		ids:     map[string]int64{"": 0},
	}
	for _, s := range wellKnownStrings {
		st.Intern(s)
	}
	return st
}

// Intern returns the id of s, adding it to the table the first time.
func (st *StringTable) Intern(s string) int64 {
	if id, exists := st.ids[s]; exists {
		return id
	}
	id := int64(len(st.strings))
	st.ids[s] = id
	st.strings = append(st.strings, s)
	return id
}

func (st *StringTable) Strings() []string {
	return st.strings
}
