package bridge_bytes

import (
	"github.com/OpenListTeam/wazero-uv/bridge"
	"github.com/OpenListTeam/wazero-uv/bridge/bytes/v0_1"

	"github.com/Masterminds/semver/v3"
)

// Module 返回一个配置好的 bytes 模块选项。
func Module(version string) bridge.ModuleOption {
	return func(h *bridge.Host) {
		v, err := semver.NewVersion(version)
		if err != nil {
			h.Reject("bytes", version, err)
			return
		}
		if !v0_1.Supports(v) {
			h.Reject("bytes", version, bridge.ErrUnsupportedVersion)
			return
		}
		h.AddImplementation(v0_1.NewBytes(v))
	}
}
