package vm

import (
	"strings"
	"testing"
)

func TestNumberEscape(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"#n12\\3+:", "15\n"},
		{"#n-2147483648\\:", "-2147483648\n"},
		{"#n+9\\:", "9\n"},
		{"#n" + strings.Repeat("0", MaxEscapeLen) + "\\:", "0\n"},
	}
	for _, tt := range tests {
		out, status, _ := runProgram(t, tt.src, "")
		if status != StatusOK {
			t.Errorf("%q: status = %v", tt.src, status)
			continue
		}
		if out != tt.want {
			t.Errorf("%q: output = %q, want %q", tt.src, out, tt.want)
		}
	}
}

func TestEscapeFailures(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want Status
	}{
		{"unknown letter", "#x", StatusUnknownEscape},
		{"missing backslash", "#n12", StatusMalformedEscape},
		{"hash at end", "1#", StatusMalformedEscape},
		{"char escape at end", "#c", StatusMalformedEscape},
		{"not a number", "#nabc\\", StatusBadNumber},
		{"empty number", "#n\\", StatusBadNumber},
		{"out of range", "#n2147483648\\", StatusBadNumber},
		{"payload too long", "#n" + strings.Repeat("1", MaxEscapeLen+1) + "\\", StatusEscapeTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, status, _ := runProgram(t, tt.src, ""); status != tt.want {
				t.Errorf("status = %v, want %v", status, tt.want)
			}
		})
	}
}

func TestCreateSelectAndQuery(t *testing.T) {
	out, status, v := runProgram(t, "9#n-1\\#n5\\#sns\\#scs\\78#gcs\\:", "")
	if status != StatusOK {
		t.Fatalf("status = %v", status)
	}
	if out != "1\n" {
		t.Errorf("output = %q, want current stack 1", out)
	}
	if got := stackValues(t, v, 0); !equalValues(got, []Value{9}) {
		t.Errorf("stack 0 = %v, want [9]", got)
	}
	if got := stackValues(t, v, 1); !equalValues(got, []Value{7, 8}) {
		t.Errorf("stack 1 = %v, want [7 8]", got)
	}
	st, _ := v.Last().Stack(1)
	if st.Capacity != 5 {
		t.Errorf("stack 1 capacity = %d, want 5", st.Capacity)
	}
	if v.Last().Current != 1 {
		t.Errorf("current = %d, want 1", v.Last().Current)
	}
}

func TestStackLengthQuery(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"#gln\\:", "0\n"},
		{"789#gln\\:", "3\n"},
		{"#n1\\#n4\\#sns\\#scs\\5#gln\\:", "1\n"},
	}
	for _, tt := range tests {
		out, status, _ := runProgram(t, tt.src, "", WithStrictEscapes(true))
		if status != StatusOK {
			t.Errorf("%q: status = %v", tt.src, status)
			continue
		}
		if out != tt.want {
			t.Errorf("%q: output = %q, want %q", tt.src, out, tt.want)
		}
	}
	if _, status, _ := runProgram(t, "0#sds\\#gln\\", ""); status != StatusInvalidStack {
		t.Errorf("length of deleted current stack: status = %v, want invalid stack", status)
	}
}

func TestTransferTop(t *testing.T) {
	// Stack 1 receives 5 then 6. tfa moves the 6 back, tfb copies the 5.
	_, status, v := runProgram(t, "#n1\\#n4\\#sns\\51#stfc\\61#stfc\\1#stfa\\1#stfb\\", "")
	if status != StatusOK {
		t.Fatalf("status = %v", status)
	}
	if got := stackValues(t, v, 0); !equalValues(got, []Value{1, 6, 5}) {
		t.Errorf("stack 0 = %v, want [1 6 5]", got)
	}
	if got := stackValues(t, v, 1); !equalValues(got, []Value{5}) {
		t.Errorf("stack 1 = %v, want [5]", got)
	}
}

func TestTransferBottom(t *testing.T) {
	_, status, v := runProgram(t, "#n1\\#n4\\#sns\\51#stfc\\61#stfc\\1#stff\\1#stfe\\1#stfg\\1#stfh\\", "")
	if status != StatusOK {
		t.Fatalf("status = %v", status)
	}
	if got := stackValues(t, v, 0); !equalValues(got, []Value{5, 5}) {
		t.Errorf("stack 0 = %v, want [5 5]", got)
	}
	if got := stackValues(t, v, 1); !equalValues(got, []Value{6, 1, 5}) {
		t.Errorf("stack 1 = %v, want [6 1 5]", got)
	}
}

func TestTransferCopyOut(t *testing.T) {
	_, status, v := runProgram(t, "#n1\\#n4\\#sns\\71#stfd\\", "")
	if status != StatusOK {
		t.Fatalf("status = %v", status)
	}
	if got := stackValues(t, v, 0); !equalValues(got, []Value{1, 7}) {
		t.Errorf("stack 0 = %v, want [1 7]", got)
	}
	if got := stackValues(t, v, 1); !equalValues(got, []Value{7}) {
		t.Errorf("stack 1 = %v, want [7]", got)
	}
}

func TestClearStack(t *testing.T) {
	_, status, v := runProgram(t, "123 0#sclr\\", "")
	if status != StatusOK {
		t.Fatalf("status = %v", status)
	}
	if got := stackValues(t, v, 0); len(got) != 0 {
		t.Errorf("stack 0 = %v, want empty", got)
	}
}

func TestStackCommandFailures(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want Status
		opts []Option
	}{
		{"current deleted", "#n1\\#n4\\#sns\\#scs\\1#sds\\1", StatusInvalidStack, nil},
		{"create in use", "05#sns\\", StatusStackInUse, nil},
		{"create out of range", "#n10\\5#sns\\", StatusInvalidStack, nil},
		{"zero capacity", "#n-1\\0#sns\\", StatusBadCapacity, nil},
		{"over max capacity", "#n-1\\#n200\\#sns\\", StatusBadCapacity, []Option{WithMaxCapacity(100)}},
		{"select unused", "3#scs\\", StatusInvalidStack, nil},
		{"delete unused", "3#sds\\", StatusInvalidStack, nil},
		{"transfer from unused", "3#stfa\\", StatusInvalidStack, nil},
		{"transfer from empty", "#n1\\#n4\\#sns\\1#stfa\\", StatusEmptyStack, nil},
		{"missing operand", "#sns\\", StatusEmptyStack, nil},
		{"no free stack", strings.Repeat("#n-1\\1#sns\\", MaxStacks), StatusNoFreeStack, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, status, _ := runProgram(t, tt.src, "", tt.opts...); status != tt.want {
				t.Errorf("status = %v, want %v", status, tt.want)
			}
		})
	}
}

func TestUnknownCommands(t *testing.T) {
	for _, src := range []string{"#sxyz\\", "#gxyz\\"} {
		if _, status, _ := runProgram(t, src, ""); status != StatusOK {
			t.Errorf("%q: status = %v, want unknown command ignored", src, status)
		}
		if _, status, _ := runProgram(t, src, "", WithStrictEscapes(true)); status != StatusUnknownCommand {
			t.Errorf("%q strict: status = %v, want unknown command", src, status)
		}
	}
}
