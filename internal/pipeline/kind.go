package pipeline

import (
	"fmt"
	"strings"
)

// Kind selects the per-project variant of the generated pipeline.
type Kind string

const (
	// KindPlain builds a standard RPM spec repository on its release branches.
	KindPlain Kind = "plain"
	// KindNginx builds NGINX module specs for every NGINX branch variant.
	KindNginx Kind = "nginx"
	// KindNginxWithoutPlesk is KindNginx minus the Plesk-only variants.
	KindNginxWithoutPlesk Kind = "nginx-without-plesk"
	// KindSelf builds software repositories that carry their own spec, on tags.
	KindSelf Kind = "self"
	// KindSpecsOnly gates every job on the specs branch.
	KindSpecsOnly Kind = "specs-only"
)

// Kinds lists every kind in fleet generation order.
var Kinds = []Kind{KindPlain, KindNginx, KindNginxWithoutPlesk, KindSelf, KindSpecsOnly}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown project kind %q (expected one of %s)", s, kindList())
}

// Nginx reports whether the kind builds NGINX modules.
func (k Kind) Nginx() bool {
	return k == KindNginx || k == KindNginxWithoutPlesk
}

// FileName returns the fleet output file of the kind.
func (k Kind) FileName() string {
	switch k {
	case KindNginx:
		return "generated_config_nginx.yml"
	case KindNginxWithoutPlesk:
		return "generated_config_nginx_without_plesk.yml"
	case KindSelf:
		return "generated_config_self.yml"
	case KindSpecsOnly:
		return "generated_config_specs_only.yml"
	default:
		return "generated_config.yml"
	}
}

func kindList() string {
	names := make([]string, len(Kinds))
	for i, k := range Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
