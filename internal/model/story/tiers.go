package story

// DurationTier 时长档位
// 档位 → 目标场景数的映射是"总工作量"的唯一权威来源：
// 剧本生成按它决定单次调用还是分批，视频合成按场景数决定是否分块
type DurationTier string

const (
	Tier30Seconds DurationTier = "30s"
	Tier1Minute   DurationTier = "1m"
	Tier3Minutes  DurationTier = "3m"
	Tier5Minutes  DurationTier = "5m"
	Tier10Minutes DurationTier = "10m"
	Tier20Minutes DurationTier = "20m"
	Tier30Minutes DurationTier = "30m"
	Tier60Minutes DurationTier = "60m"
)

// tierSceneCounts 时长档位 → 目标场景数
var tierSceneCounts = map[DurationTier]int{
	Tier30Seconds: 6,
	Tier1Minute:   12,
	Tier3Minutes:  15,
	Tier5Minutes:  30,
	Tier10Minutes: 60,
	Tier20Minutes: 120,
	Tier30Minutes: 180,
	Tier60Minutes: 240,
}

// SceneCount 返回档位的目标场景数
// 未知档位返回 0 和 false
func (t DurationTier) SceneCount() (int, bool) {
	n, ok := tierSceneCounts[t]
	return n, ok
}

// Valid 判断档位是否受支持
func (t DurationTier) Valid() bool {
	_, ok := tierSceneCounts[t]
	return ok
}

// String 返回档位的字符串表示
func (t DurationTier) String() string {
	return string(t)
}
