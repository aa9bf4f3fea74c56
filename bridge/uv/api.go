package bridge_uv

import (
	"github.com/OpenListTeam/wazero-uv/bridge"
	"github.com/OpenListTeam/wazero-uv/bridge/uv/v0_1"

	"github.com/Masterminds/semver/v3"
)

// Module 返回一个配置好的 uv 模块选项。
func Module(version string) bridge.ModuleOption {
	return func(h *bridge.Host) {
		v, err := semver.NewVersion(version)
		if err != nil {
			h.Reject("uv", version, err)
			return
		}
		switch {
		case v0_1.Supports(v):
			h.AddImplementation(v0_1.NewUV(v))
		default:
			h.Reject("uv", version, bridge.ErrUnsupportedVersion)
		}
	}
}
