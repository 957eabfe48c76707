package singleflight

import "github.com/ceyewan/aegis/xerrors"

// ErrInProgress 同 key 的调用正在进行中（仅 TryDo 返回）
var ErrInProgress = xerrors.New("singleflight: call already in progress")
