package remote

import (
	"path"

	"github.com/strimzi/featuregates/evaluation"
)

// ScopedKeys returns the key-value store keys consulted for a gate, from the
// most to the least specific:
//
//	<prefix>/<namespace>/<clusterName>/<gate>
//	<prefix>/<namespace>/<gate>
//	<prefix>/<gate>
//
// Scopes whose attributes are missing from ec are skipped.
func ScopedKeys(prefix, name string, ec evaluation.Context) []string {
	var keys []string
	ns, cluster := ec.Namespace(), ec.ClusterName()
	if ns != "" && cluster != "" {
		keys = append(keys, path.Join(prefix, ns, cluster, name))
	}
	if ns != "" {
		keys = append(keys, path.Join(prefix, ns, name))
	}
	return append(keys, path.Join(prefix, name))
}
