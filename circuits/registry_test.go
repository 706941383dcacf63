package circuits

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/omron-net/omron-node/config"
)

func writeCircuit(t *testing.T, root, id string, meta Metadata) string {
	t.Helper()
	dir := filepath.Join(root, config.CircuitDirPrefix+id)
	err := os.MkdirAll(dir, 0o755)
	qt.Assert(t, err, qt.IsNil)
	data, err := json.Marshal(meta)
	qt.Assert(t, err, qt.IsNil)
	err = os.WriteFile(filepath.Join(dir, config.MetadataFileName), data, 0o644)
	qt.Assert(t, err, qt.IsNil)
	return dir
}

func testMeta(name, version string) Metadata {
	return Metadata{
		Name:        name,
		Author:      "tester",
		Version:     version,
		Type:        "proof_of_computation",
		ProofSystem: "mock",
	}
}

func TestLoadFromDir(t *testing.T) {
	c := qt.New(t)
	root := t.TempDir()
	writeCircuit(t, root, "aaa", testMeta("model-a", "1.0.0"))
	writeCircuit(t, root, "bbb", testMeta("model-b", "2.1.0"))
	// non-circuit entries must be ignored
	c.Assert(os.MkdirAll(filepath.Join(root, "not_a_circuit"), 0o755), qt.IsNil)
	c.Assert(os.WriteFile(filepath.Join(root, "README"), []byte("x"), 0o644), qt.IsNil)

	r := NewRegistry(WithIgnoreList(nil))
	loaded, found, err := r.LoadFromDir(root)
	c.Assert(err, qt.IsNil)
	c.Assert(found, qt.Equals, 2)
	c.Assert(loaded, qt.Equals, 2)
	c.Assert(r.IDs(), qt.DeepEquals, []string{"aaa", "bbb"})

	circuit, ok := r.Get("aaa")
	c.Assert(ok, qt.IsTrue)
	c.Assert(circuit.Metadata.Name, qt.Equals, "model-a")
	c.Assert(circuit.Dir, qt.Equals, filepath.Join(root, "model_aaa"))
}

func TestLoadFromDirIdempotent(t *testing.T) {
	c := qt.New(t)
	root := t.TempDir()
	writeCircuit(t, root, "aaa", testMeta("model-a", "1.0.0"))

	r := NewRegistry(WithIgnoreList(nil))
	loaded, found, err := r.LoadFromDir(root)
	c.Assert(err, qt.IsNil)
	c.Assert(loaded, qt.Equals, 1)
	c.Assert(found, qt.Equals, 1)

	before, _ := r.Get("aaa")
	loaded, found, err = r.LoadFromDir(root)
	c.Assert(err, qt.IsNil)
	c.Assert(loaded, qt.Equals, 1)
	c.Assert(found, qt.Equals, 1)
	c.Assert(len(r.IDs()), qt.Equals, 1)

	// repeated loads never replace an already loaded instance
	after, _ := r.Get("aaa")
	c.Assert(after, qt.Equals, before)
}

func TestLoadFromDirSkipsIgnored(t *testing.T) {
	c := qt.New(t)
	root := t.TempDir()
	writeCircuit(t, root, "good", testMeta("model-good", "1.0.0"))
	writeCircuit(t, root, "banned", testMeta("model-banned", "1.0.0"))

	r := NewRegistry(WithIgnoreList([]string{"banned"}))
	loaded, found, err := r.LoadFromDir(root)
	c.Assert(err, qt.IsNil)
	c.Assert(found, qt.Equals, 1)
	c.Assert(loaded, qt.Equals, 1)
	_, ok := r.Get("banned")
	c.Assert(ok, qt.IsFalse)
	_, ok = r.Get("good")
	c.Assert(ok, qt.IsTrue)
}

func TestLoadFromDirSkipsBrokenCircuit(t *testing.T) {
	c := qt.New(t)
	root := t.TempDir()
	writeCircuit(t, root, "ok", testMeta("model-ok", "1.0.0"))
	// missing proof system makes the circuit unloadable
	writeCircuit(t, root, "broken", Metadata{Name: "model-broken", Version: "1.0.0"})
	// unparseable metadata
	dir := filepath.Join(root, config.CircuitDirPrefix+"garbled")
	c.Assert(os.MkdirAll(dir, 0o755), qt.IsNil)
	c.Assert(os.WriteFile(filepath.Join(dir, config.MetadataFileName), []byte("{"), 0o644), qt.IsNil)

	r := NewRegistry(WithIgnoreList(nil))
	loaded, found, err := r.LoadFromDir(root)
	c.Assert(err, qt.IsNil)
	c.Assert(found, qt.Equals, 3)
	c.Assert(loaded, qt.Equals, 1)
	c.Assert(r.IDs(), qt.DeepEquals, []string{"ok"})
}

func TestLatestByName(t *testing.T) {
	c := qt.New(t)
	root := t.TempDir()
	writeCircuit(t, root, "v1", testMeta("model", "1.0.0"))
	writeCircuit(t, root, "v15", testMeta("model", "1.5.2"))
	writeCircuit(t, root, "v2", testMeta("model", "2.0.0"))

	r := NewRegistry(WithIgnoreList(nil))
	_, _, err := r.LoadFromDir(root)
	c.Assert(err, qt.IsNil)

	circuit, ok := r.LatestByName("model")
	c.Assert(ok, qt.IsTrue)
	c.Assert(circuit.Metadata.Version, qt.Equals, "2.0.0")

	_, ok = r.LatestByName("unknown")
	c.Assert(ok, qt.IsFalse)
}

func TestLatestByNameTieBreak(t *testing.T) {
	c := qt.New(t)
	root := t.TempDir()
	writeCircuit(t, root, "zzz", testMeta("model", "2.0.0"))
	writeCircuit(t, root, "aaa", testMeta("model", "2.0.0"))

	r := NewRegistry(WithIgnoreList(nil))
	_, _, err := r.LoadFromDir(root)
	c.Assert(err, qt.IsNil)

	// equal versions must resolve to the same circuit on every call
	for range 10 {
		circuit, ok := r.LatestByName("model")
		c.Assert(ok, qt.IsTrue)
		c.Assert(circuit.ID, qt.Equals, "aaa")
	}
}

func TestByNameAndVersion(t *testing.T) {
	c := qt.New(t)
	root := t.TempDir()
	writeCircuit(t, root, "v1", testMeta("model", "1.0.0"))
	writeCircuit(t, root, "v2", testMeta("model", "2.0.0"))

	r := NewRegistry(WithIgnoreList(nil))
	_, _, err := r.LoadFromDir(root)
	c.Assert(err, qt.IsNil)

	circuit, ok := r.ByNameAndVersion("model", "1.0.0")
	c.Assert(ok, qt.IsTrue)
	c.Assert(circuit.ID, qt.Equals, "v1")

	_, ok = r.ByNameAndVersion("model", "3.0.0")
	c.Assert(ok, qt.IsFalse)
}

func TestNetuidResolution(t *testing.T) {
	c := qt.New(t)
	root := t.TempDir()
	netuid := uint32(2)
	old := testMeta("model", "1.0.0")
	old.Netuid = &netuid
	old.WeightsVersion = 7
	writeCircuit(t, root, "old", old)
	latest := testMeta("model", "3.0.0")
	latest.Netuid = &netuid
	latest.WeightsVersion = 9
	writeCircuit(t, root, "new", latest)

	r := NewRegistry(WithIgnoreList(nil))
	_, _, err := r.LoadFromDir(root)
	c.Assert(err, qt.IsNil)

	circuit, ok := r.LatestByNetuid(netuid)
	c.Assert(ok, qt.IsTrue)
	c.Assert(circuit.ID, qt.Equals, "new")

	circuit, ok = r.ByNetuidAndWeightsVersion(netuid, 7)
	c.Assert(ok, qt.IsTrue)
	c.Assert(circuit.ID, qt.Equals, "old")

	_, ok = r.ByNetuidAndWeightsVersion(netuid, 8)
	c.Assert(ok, qt.IsFalse)
	_, ok = r.LatestByNetuid(99)
	c.Assert(ok, qt.IsFalse)
}

func TestClearCache(t *testing.T) {
	c := qt.New(t)
	root := t.TempDir()
	writeCircuit(t, root, "aaa", testMeta("model-a", "1.0.0"))

	r := NewRegistry(WithIgnoreList(nil))
	_, _, err := r.LoadFromDir(root)
	c.Assert(err, qt.IsNil)
	_, ok := r.Get("aaa")
	c.Assert(ok, qt.IsTrue)

	r.ClearCache()

	// loaded circuits survive a cache clear
	circuit, ok := r.Get("aaa")
	c.Assert(ok, qt.IsTrue)
	c.Assert(circuit.Metadata.Name, qt.Equals, "model-a")
	c.Assert(len(r.IDs()), qt.Equals, 1)
}

func TestMetadataList(t *testing.T) {
	c := qt.New(t)
	root := t.TempDir()
	netuid := config.MainnetTestnetNetuids[0][0]
	meta := testMeta("model-a", "1.0.0")
	meta.Netuid = &netuid
	writeCircuit(t, root, "bbb", testMeta("model-b", "2.0.0"))
	writeCircuit(t, root, "aaa", meta)

	r := NewRegistry(WithIgnoreList(nil))
	_, _, err := r.LoadFromDir(root)
	c.Assert(err, qt.IsNil)

	infos := r.MetadataList()
	c.Assert(infos, qt.HasLen, 2)
	c.Assert(infos[0].ID, qt.Equals, "aaa")
	c.Assert(infos[1].ID, qt.Equals, "bbb")
	c.Assert(infos[0].TestnetNetuids, qt.DeepEquals, config.TestnetNetuidsFor(netuid))
	c.Assert(infos[1].TestnetNetuids, qt.HasLen, 0)

	info, ok := r.Info("bbb")
	c.Assert(ok, qt.IsTrue)
	c.Assert(info.Name, qt.Equals, "model-b")
	_, ok = r.Info("nope")
	c.Assert(ok, qt.IsFalse)
}

func TestCircuitVersionValidation(t *testing.T) {
	c := qt.New(t)
	_, err := NewCircuit("x", "/tmp/x", Metadata{ProofSystem: "mock", Version: "not-a-version"})
	c.Assert(err, qt.IsNotNil)

	circuit, err := NewCircuit("x", "/tmp/x", Metadata{ProofSystem: "mock", Version: "v1.2"})
	c.Assert(err, qt.IsNil)
	c.Assert(circuit.Version().String(), qt.Equals, "1.2.0")
}
