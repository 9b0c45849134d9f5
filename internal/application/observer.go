package application

// Observer receives domain events worth counting. Implementations must be safe
// for concurrent use.
type Observer interface {
	AccessDenied(role Role)
	InviteIssued(reissued bool)
	InviteAccepted()
	InviteExpired()
	InviteNotification(err error)
}

type noopObserver struct{}

func (noopObserver) AccessDenied(Role)        {}
func (noopObserver) InviteIssued(bool)        {}
func (noopObserver) InviteAccepted()          {}
func (noopObserver) InviteExpired()           {}
func (noopObserver) InviteNotification(error) {}

func defaultObserver(observer Observer) Observer {
	if observer != nil {
		return observer
	}
	return noopObserver{}
}
