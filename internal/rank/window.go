package rank

import (
	"time"

	"github.com/rankpulse/monitor/internal/models"
)

// BusinessZone 业务时区，固定 UTC+8（北京时间），不随主机时区变化。
var BusinessZone = time.FixedZone("UTC+8", 8*3600)

// InCheckWindow 判断当前时间是否落在检测窗口内
//
// 仅比较小时，分钟不参与判断；窗口为半开区间 [start, end)。
// country 参数保留但当前不区分站点，所有站点共用同一窗口。
func InCheckWindow(now time.Time, country string, settings models.SchedulerSettings) bool {
	_ = country
	hour := now.In(BusinessZone).Hour()

	if hour >= settings.MorningStart && hour < settings.MorningEnd {
		return true
	}
	if hour >= settings.EveningStart && hour < settings.EveningEnd {
		return true
	}
	return false
}
