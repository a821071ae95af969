package banner

import (
	"fmt"
)

const banner = `
 ██████╗ ██████╗ ██████╗ ███████╗███████╗██╗  ██╗ █████╗ ██████╗ ███████╗
██╔════╝██╔═══██╗██╔══██╗██╔════╝██╔════╝██║  ██║██╔══██╗██╔══██╗██╔════╝
██║     ██║   ██║██║  ██║█████╗  ███████╗███████║███████║██████╔╝█████╗
██║     ██║   ██║██║  ██║██╔══╝  ╚════██║██╔══██║██╔══██║██╔══██╗██╔══╝
╚██████╗╚██████╔╝██████╔╝███████╗███████║██║  ██║██║  ██║██║  ██║███████╗
 ╚═════╝ ╚═════╝ ╚═════╝ ╚══════╝╚══════╝╚═╝  ╚═╝╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝
`

// Print writes the startup banner plus the key runtime facts.
func Print(addr, dbPath, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("GET  /computer-programming/browse - Browse shared programs")
	fmt.Println("POST /API/signup - Create an account (JSON: username, password, recaptchaRes)")
	fmt.Println("POST /API/login - Sign in (JSON: username, password)")
	fmt.Println("POST /API/create_program - Save a new program")
	fmt.Println("GET  /API/projects?sort=hot&page=0 - List browse pages (JSON response)")
	fmt.Println("\n== Production? =================================================")
	fmt.Println("Set a proper storage path (--db)")
	fmt.Println("Set CODESHARE_MASTER_KEY or sessions stay disabled")
}
