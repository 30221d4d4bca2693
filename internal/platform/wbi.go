package platform

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/vidsyncd/vidsyncd/internal/models"
)

// mixinKeyEncTab is the fixed 64-position permutation table used to derive
// the 32-char mixin key from img_key+sub_key. It never changes across
// platform key rotations; only the two keys it indexes into do.
var mixinKeyEncTab = [64]int{
	46, 47, 18, 2, 53, 8, 23, 32, 15, 50, 10, 31, 58, 3, 45, 35,
	27, 43, 5, 49, 33, 9, 42, 19, 29, 28, 14, 39, 12, 38, 41, 13,
	37, 48, 7, 16, 24, 55, 40, 61, 26, 17, 0, 1, 60, 51, 30, 4,
	22, 25, 54, 21, 56, 59, 6, 63, 57, 62, 11, 36, 20, 34, 44, 52,
}

// valueStripChars characters are dropped from query values before signing;
// the upstream API rejects signatures computed with them left in.
const valueStripChars = "!'()*"

// mixinKey permutes img_key+sub_key through the fixed table and truncates
// to 32 characters.
func mixinKey(keys models.WbiKeys) string {
	raw := keys.ImgKey + keys.SubKey
	var b strings.Builder
	b.Grow(32)
	for i, idx := range mixinKeyEncTab {
		if i >= 32 {
			break
		}
		if idx < len(raw) {
			b.WriteByte(raw[idx])
		}
	}
	return b.String()
}

// stripSignValue removes the characters the signing algorithm excludes from
// query values.
func stripSignValue(v string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(valueStripChars, r) {
			return -1
		}
		return r
	}, v)
}

// Sign computes the wts/w_rid pair for a set of request parameters given the
// current wbi keys and a unix-second timestamp, and returns the full query
// string ready to attach to the request. It is a pure function: the same
// inputs always produce the same w_rid.
func Sign(params url.Values, keys models.WbiKeys, ts int64) string {
	signed := url.Values{}
	for k, vs := range params {
		if len(vs) > 0 {
			signed.Set(k, vs[0])
		}
	}
	signed.Set("wts", strconv.FormatInt(ts, 10))

	keysSorted := make([]string, 0, len(signed))
	for k := range signed {
		keysSorted = append(keysSorted, k)
	}
	sort.Strings(keysSorted)

	var qs strings.Builder
	for i, k := range keysSorted {
		if i > 0 {
			qs.WriteByte('&')
		}
		v := stripSignValue(signed.Get(k))
		qs.WriteString(url.QueryEscape(k))
		qs.WriteByte('=')
		qs.WriteString(url.QueryEscape(v))
	}

	toHash := qs.String() + mixinKey(keys)
	sum := md5.Sum([]byte(toHash))
	wRid := hex.EncodeToString(sum[:])

	return qs.String() + "&w_rid=" + wRid
}
