package block

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// nackPattern matches the literal NACK syntax from spec §6:
// ^NACK:BLOCK=\d{1,5},CHUNKS=(\d+(-\d+)?)(,\d+(-\d+)?)*$
var nackPattern = regexp.MustCompile(`^NACK:BLOCK=(\d{1,5}),CHUNKS=(\d+(?:-\d+)?(?:,\d+(?:-\d+)?)*)$`)

// EncodeNack collapses a sorted set of missing part numbers into the
// NACK wire syntax, merging consecutive runs into inclusive ranges
// (invariant 9: ranges never overlap).
func EncodeNack(blockID uint16, missing []int) string {
	var parts []string
	i := 0
	for i < len(missing) {
		start := missing[i]
		end := start
		j := i + 1
		for j < len(missing) && missing[j] == end+1 {
			end = missing[j]
			j++
		}
		if start == end {
			parts = append(parts, strconv.Itoa(start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, end))
		}
		i = j
	}
	return fmt.Sprintf("NACK:BLOCK=%d,CHUNKS=%s", blockID, strings.Join(parts, ","))
}

// ParseNack decodes a NACK line into the block id and the (possibly
// duplicate-containing) set of requested part numbers.
func ParseNack(line string) (blockID uint16, parts []int, err error) {
	m := nackPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, nil, ErrBadNack
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, nil, ErrBadNack
	}
	seen := make(map[int]bool)
	for _, field := range strings.Split(m[2], ",") {
		if dash := strings.IndexByte(field, '-'); dash >= 0 {
			lo, errLo := strconv.Atoi(field[:dash])
			hi, errHi := strconv.Atoi(field[dash+1:])
			if errLo != nil || errHi != nil || lo > hi {
				return 0, nil, ErrBadNack
			}
			for p := lo; p <= hi; p++ {
				if !seen[p] {
					seen[p] = true
					parts = append(parts, p)
				}
			}
			continue
		}
		p, errP := strconv.Atoi(field)
		if errP != nil {
			return 0, nil, ErrBadNack
		}
		if !seen[p] {
			seen[p] = true
			parts = append(parts, p)
		}
	}
	return uint16(id), parts, nil
}
