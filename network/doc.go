// Package network 定义服务器使用的传输层接口。
//
// 标准库 net/http 实现见 network/standard。
package network
