// contractcore 合约核心命令行工具
//
// 每个子命令启动一次应用、执行一个操作后停止，状态保存在 --data-dir 下。
package main

func main() {
	Execute()
}
