package platform

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vidsyncd/vidsyncd/internal/models"
)

func TestSign_Deterministic(t *testing.T) {
	keys := models.WbiKeys{ImgKey: "img-key-0123456789abcdef0123456789ab", SubKey: "sub-key-0123456789abcdef0123456789ab"}
	params := url.Values{"foo": {"bar"}, "baz": {"qux"}}

	first := Sign(params, keys, 1700000000)
	second := Sign(params, keys, 1700000000)
	assert.Equal(t, first, second)
}

func TestSign_ChangesWithTimestamp(t *testing.T) {
	keys := models.WbiKeys{ImgKey: "img-key-0123456789abcdef0123456789ab", SubKey: "sub-key-0123456789abcdef0123456789ab"}
	params := url.Values{"foo": {"bar"}}

	a := Sign(params, keys, 1700000000)
	b := Sign(params, keys, 1700000001)
	assert.NotEqual(t, a, b)
}

func TestSign_StripsDisallowedValueCharacters(t *testing.T) {
	keys := models.WbiKeys{ImgKey: "img-key-0123456789abcdef0123456789ab", SubKey: "sub-key-0123456789abcdef0123456789ab"}
	dirty := url.Values{"q": {"a!b'c(d)e*f"}}
	clean := url.Values{"q": {"abcdef"}}

	assert.Equal(t, Sign(clean, keys, 1700000000), Sign(dirty, keys, 1700000000))
}

func TestSign_IncludesWRidAndWts(t *testing.T) {
	keys := models.WbiKeys{ImgKey: "img-key-0123456789abcdef0123456789ab", SubKey: "sub-key-0123456789abcdef0123456789ab"}
	out := Sign(url.Values{"foo": {"bar"}}, keys, 1700000000)

	assert.Contains(t, out, "wts=1700000000")
	assert.Contains(t, out, "w_rid=")
}

func TestMixinKey_Is32Chars(t *testing.T) {
	keys := models.WbiKeys{ImgKey: "0123456789abcdef0123456789abcdef", SubKey: "fedcba9876543210fedcba9876543210"}
	assert.Len(t, mixinKey(keys), 32)
}
