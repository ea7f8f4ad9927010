package step

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/curriculagg/curricula-grade/resource"
	"github.com/curriculagg/curricula-grade/result"
	"github.com/curriculagg/curricula-grade/task"
)

// MemoryOptions configures a valgrind memory check
type MemoryOptions struct {
	Program
	// Valgrind is the valgrind command, "valgrind" by default
	Valgrind []string
}

var (
	errorSummary = regexp.MustCompile(`ERROR SUMMARY: ([\d,]+) errors?`)
	definiteLost = regexp.MustCompile(`definitely lost: ([\d,]+) bytes in ([\d,]+) blocks?`)
)

// Valgrind runs a program under valgrind memcheck and records leaks
func Valgrind(opts MemoryOptions) task.Func {
	wrapper := opts.Valgrind
	if len(wrapper) == 0 {
		wrapper = []string{"valgrind", "--leak-check=full"}
	}
	return func(ctx context.Context, in *resource.Inputs) (*result.Result, error) {
		rt, err := opts.run(ctx, in, wrapper...)
		if err != nil {
			return nil, err
		}
		if rt.Raised != "" || rt.TimedOut {
			return fromRuntime(result.KindMemory, rt), nil
		}
		return ParseValgrind(string(rt.Stderr)).Detail("runtime", rt.Dump()), nil
	}
}

// ParseValgrind builds a memory result from valgrind memcheck output
func ParseValgrind(output string) *result.Result {
	m := errorSummary.FindStringSubmatch(output)
	if m == nil {
		return result.Incomplete(result.KindMemory, result.ErrorKindRuntimeFault, "no valgrind summary in output")
	}
	errs := atoi(m[1])
	bytes, blocks := 0, 0
	if l := definiteLost.FindStringSubmatch(output); l != nil {
		bytes, blocks = atoi(l[1]), atoi(l[2])
	}

	r := result.New(result.KindMemory, errs == 0 && bytes == 0)
	r.ErrorCount = &errs
	r.LeakedBytes = &bytes
	r.LeakedBlocks = &blocks
	if !r.Passing {
		r.Error = result.NewError(result.ErrorKindFailure,
			fmt.Sprintf("leaked %d bytes with %d errors", bytes, errs))
	}
	return r
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	return n
}
