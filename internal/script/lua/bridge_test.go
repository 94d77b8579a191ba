package lua

import (
	"slices"
	"strings"
	"testing"

	glua "github.com/yuin/gopher-lua"
)

func TestToLuaValue(t *testing.T) {
	L := glua.NewState()
	defer L.Close()

	scalars := []struct {
		in   any
		want glua.LValue
	}{
		{nil, glua.LNil},
		{true, glua.LTrue},
		{42, glua.LNumber(42)},
		{1.5, glua.LNumber(1.5)},
		{[]byte("raw"), glua.LString("raw")},
	}
	for _, tt := range scalars {
		if got := ToLuaValue(L, tt.in); got != tt.want {
			t.Errorf("ToLuaValue(%#v) = %v, want %v", tt.in, got, tt.want)
		}
	}

	arr, ok := ToLuaValue(L, []string{"a", "b"}).(*glua.LTable)
	if !ok {
		t.Fatal("[]string did not convert to a table")
	}
	if arr.Len() != 2 || arr.RawGetInt(2) != glua.LString("b") {
		t.Errorf("array table len=%d [2]=%v, want 2 and b", arr.Len(), arr.RawGetInt(2))
	}

	tbl, ok := ToLuaValue(L, map[string]any{"code": 3, "list": []any{"x"}}).(*glua.LTable)
	if !ok {
		t.Fatal("map did not convert to a table")
	}
	if got := tbl.RawGetString("code"); got != glua.LNumber(3) {
		t.Errorf("code = %v, want 3", got)
	}
	if got := tbl.RawGetString("list").Type(); got != glua.LTTable {
		t.Errorf("list type = %v, want table", got)
	}

	type opaque struct{}
	ud, ok := ToLuaValue(L, opaque{}).(*glua.LUserData)
	if !ok {
		t.Fatal("struct did not convert to userdata")
	}
	if ud.Value != (opaque{}) {
		t.Errorf("userdata value = %#v, want opaque{}", ud.Value)
	}
}

func TestToStringSlice(t *testing.T) {
	L := glua.NewState()
	defer L.Close()

	tbl := L.NewTable()
	tbl.Append(glua.LString("-c"))
	tbl.Append(glua.LString("echo"))
	got, err := ToStringSlice(tbl)
	if err != nil {
		t.Fatalf("ToStringSlice error: %v", err)
	}
	if want := []string{"-c", "echo"}; !slices.Equal(got, want) {
		t.Errorf("ToStringSlice() = %v, want %v", got, want)
	}

	tbl.Append(glua.LNumber(1))
	_, err = ToStringSlice(tbl)
	if err == nil || !strings.Contains(err.Error(), "element 3") {
		t.Errorf("expected an error naming element 3, got %v", err)
	}
}
