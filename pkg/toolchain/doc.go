// Package toolchain models compiler suites and resolves them from raw
// definitions.
//
// A Toolchain owns an ordered set of Tools and may inherit from a parent
// toolchain. Inheritance is resolved by deep copying the parent and rebinding
// every copied Tool to the new owner, then applying the child's own scalar
// fields and tool overrides:
//
//	gcc
//	 ├── arm-none-eabi-gcc   (commandPrefix "arm-none-eabi-")
//	 ├── riscv-none-elf-gcc  (commandPrefix "riscv-none-elf-")
//	 └── clang               (tool command names overridden)
//
// The Registry keeps raw definitions from any number of sources (the
// embedded assets, then project descriptors) and memoizes resolved
// toolchains by name:
//
//	reg := toolchain.NewRegistry(logger)
//	if err := reg.LoadAssets(); err != nil {
//		return err
//	}
//	tc, err := reg.Retrieve("arm-none-eabi-gcc")
//
// Resolved toolchains are shared between callers and are treated as
// immutable.
package toolchain
