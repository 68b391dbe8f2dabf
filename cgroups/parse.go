package cgroups

// ParseInt parses the decimal integer at the start of b: an optional minus
// sign followed by digits, stopping at the first other byte. Anything that
// does not start like a number parses as 0. Values beyond int64 wrap.
func ParseInt(b []byte) int64 {
	if len(b) == 0 {
		return 0
	}

	i, neg := 0, false
	if b[0] == '-' {
		i, neg = 1, true
	}

	var v int64
	for ; i < len(b); i++ {
		c := b[i]
		if c < '0' || c > '9' {
			break
		}
		v = v*10 + int64(c-'0')
	}

	if neg {
		return -v
	}
	return v
}
