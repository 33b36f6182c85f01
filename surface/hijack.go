package surface

import (
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// heavyResourceTypes are never useful inside a worker tab: extraction
// scripts read the DOM, they don't look at pixels.
var heavyResourceTypes = map[proto.NetworkResourceType]struct{}{
	proto.NetworkResourceTypeImage:      {},
	proto.NetworkResourceTypeFont:       {},
	proto.NetworkResourceTypeMedia:      {},
	proto.NetworkResourceTypeStylesheet: {},
}

// blockHeavyResources installs a request interceptor that fails image, font,
// media and stylesheet requests, cutting load time per surface.
//
// Returns the running HijackRouter so Release can stop it with the tab.
func blockHeavyResources(page *rod.Page) *rod.HijackRouter {
	router := page.HijackRequests()

	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if _, block := heavyResourceTypes[ctx.Request.Type()]; block {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// router.Run() blocks, so it must live in its own goroutine.
	// It exits when router.Stop() is called.
	go router.Run()

	return router
}
