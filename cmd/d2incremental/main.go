package main

import (
	"oss.terrastruct.com/util-go/xmain"

	"oss.terrastruct.com/d2incremental/d2cli"
)

func main() {
	xmain.Main(d2cli.Run)
}
