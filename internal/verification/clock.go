package verification

import "time"

// Timer は予約済みタスク。Stopで取り消す。
type Timer interface {
	Stop() bool
}

// Clock はタスクの遅延実行を提供する。テストでは手動で進める実装に差し替える。
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

// RealClock はtime.AfterFuncによるClockを返す。
func RealClock() Clock {
	return realClock{}
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
