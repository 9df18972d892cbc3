package device

import (
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/sets"
	"time"
)

const (
	// 单个动作的设备读写上限
	actionTimeout = 10 * time.Second

	maxRequestBodyBytes = 1 << 20
)

var updateContentTypes = sets.NewString("application/json", string(types.MergePatchType))
