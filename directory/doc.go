// Package directory stores the local record of every principal that has signed in.
//
// Login upserts the verified [identity.Principal]; only display name and avatar
// are refreshed on later logins. Refresh rotation resolves a subject back to its
// current principal through [Directory.ResolvePrincipal], so a subject removed
// from the directory can no longer rotate its sessions.
package directory
